// Package bridge drives an external shortest-path solver over a
// line-delimited JSON protocol. One request and one response per line; the
// worker process is long-lived and serialized, with a spawn-per-request
// fallback. Any worker failure falls back to the built-in engine so a broken
// solver can never take routing down.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"ems_router/pkg/graph"
	"ems_router/pkg/routing"
	"ems_router/pkg/viz"
)

// DefaultTimeout bounds one worker round trip.
const DefaultTimeout = 20 * time.Second

var (
	errWorkerTimeout = errors.New("worker response timed out")
	errWorkerClosed  = errors.New("worker closed its output")
)

// solveRequest is one shortest-path problem in dense index space. Node ids
// are the indices 0..nodeCount-1; edges are [from, to, weight] triples.
type solveRequest struct {
	NodeCount          int          `json:"nodeCount"`
	Edges              [][3]float64 `json:"edges"`
	Source             int          `json:"source"`
	Target             int          `json:"target"`
	ReturnPredecessors bool         `json:"returnPredecessors"`
}

// solveResponse carries the predecessor array; -1 means no predecessor.
type solveResponse struct {
	Predecessors []int  `json:"predecessors"`
	Error        string `json:"error,omitempty"`
}

// Bridge owns the external worker process. Round trips are serialized by a
// mutex; a timed-out or misbehaving worker is killed and restarted on the
// next request.
type Bridge struct {
	command []string
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	worker *worker
}

// New creates a bridge running the given command line as its worker.
func New(command []string, timeout time.Duration, logger *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{command: command, timeout: timeout, logger: logger}
}

// Solve routes source→target through the external worker. The exploration
// trace is reconstructed from the returned predecessor array. On any worker
// failure the built-in engine answers instead; only a genuine no-path result
// is surfaced as routing.ErrNoPathFound.
func (b *Bridge) Solve(ctx context.Context, g *graph.Graph, source, target int64) ([]int64, []viz.Segment, error) {
	req, ids, idx, err := encodeProblem(g, source, target)
	if err != nil {
		return nil, nil, err
	}

	resp, err := b.roundTrip(ctx, req)
	if err != nil {
		b.logger.Warn("external solver failed, using built-in engine", zap.Error(err))
		return routing.ShortestPath(g, source, target, true)
	}

	path, explored, err := decodeSolution(g, ids, resp.Predecessors, idx[source], idx[target])
	if err != nil {
		if errors.Is(err, routing.ErrNoPathFound) {
			return nil, nil, err
		}
		b.logger.Warn("external solver returned malformed solution, using built-in engine", zap.Error(err))
		return routing.ShortestPath(g, source, target, true)
	}
	return path, explored, nil
}

// Close kills the persistent worker if one is running.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeWorkerLocked()
}

func (b *Bridge) roundTrip(ctx context.Context, req *solveRequest) (*solveResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureWorkerLocked(); err != nil {
		b.logger.Warn("cannot start persistent worker, spawning one-shot", zap.Error(err))
		return b.oneShot(ctx, req)
	}
	resp, err := b.worker.roundTrip(req)
	if err != nil {
		b.closeWorkerLocked()
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("worker error: %s", resp.Error)
	}
	return resp, nil
}

func (b *Bridge) ensureWorkerLocked() error {
	if b.worker != nil && !b.worker.broken {
		return nil
	}
	b.closeWorkerLocked()
	if len(b.command) == 0 {
		return errors.New("no worker command configured")
	}

	cmd := exec.Command(b.command[0], b.command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	b.worker = newWorker(stdin, stdout, b.timeout)
	b.worker.cmd = cmd
	b.logger.Info("started external worker", zap.Int("pid", cmd.Process.Pid))
	return nil
}

func (b *Bridge) closeWorkerLocked() {
	if b.worker == nil {
		return
	}
	b.worker.close()
	b.worker = nil
}

// oneShot runs a fresh worker for a single request, feeding the request on
// stdin and reading the first response line from its output.
func (b *Bridge) oneShot(ctx context.Context, req *solveRequest) (*solveResponse, error) {
	if len(b.command) == 0 {
		return nil, errors.New("no worker command configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.command[0], b.command[1:]...)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("one-shot worker: %w", err)
	}
	line, _, _ := bytes.Cut(out, []byte{'\n'})
	var resp solveResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("one-shot worker response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("worker error: %s", resp.Error)
	}
	return &resp, nil
}

// worker is one running solver process with a reader goroutine feeding
// response lines into a channel, so round trips can time out without
// blocking on a stuck pipe. The quit channel releases a reader stuck handing
// over a late line once nobody will ever receive it.
type worker struct {
	in         io.Writer
	lines      chan string
	quit       chan struct{}
	readerDone chan struct{}
	timeout    time.Duration
	broken     bool
	cmd        *exec.Cmd
}

func newWorker(in io.Writer, out io.Reader, timeout time.Duration) *worker {
	w := &worker{
		in:         in,
		lines:      make(chan string, 1),
		quit:       make(chan struct{}),
		readerDone: make(chan struct{}),
		timeout:    timeout,
	}
	go func() {
		defer close(w.readerDone)
		defer close(w.lines)
		sc := bufio.NewScanner(out)
		sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
		for sc.Scan() {
			select {
			case w.lines <- sc.Text():
			case <-w.quit:
				return
			}
		}
	}()
	return w
}

func (w *worker) roundTrip(req *solveRequest) (*solveResponse, error) {
	if w.broken {
		return nil, errors.New("worker is broken")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := w.in.Write(append(payload, '\n')); err != nil {
		w.broken = true
		return nil, fmt.Errorf("writing to worker: %w", err)
	}

	select {
	case line, ok := <-w.lines:
		if !ok {
			w.broken = true
			return nil, errWorkerClosed
		}
		var resp solveResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			w.broken = true
			return nil, fmt.Errorf("decoding worker response: %w", err)
		}
		return &resp, nil
	case <-time.After(w.timeout):
		// A late answer would desynchronize every later request, so the
		// process is unusable from here on.
		w.broken = true
		return nil, errWorkerTimeout
	}
}

func (w *worker) close() {
	w.broken = true
	close(w.quit)
	if c, ok := w.in.(io.Closer); ok {
		c.Close()
	}
	if w.cmd != nil && w.cmd.Process != nil {
		w.cmd.Process.Kill()
		w.cmd.Wait()
	}
}

// encodeProblem maps the graph into dense index space: sorted node ids become
// indices 0..n-1, every directed edge becomes a [from, to, weight] triple.
func encodeProblem(g *graph.Graph, source, target int64) (*solveRequest, []int64, map[int64]int, error) {
	ids := g.NodeIDs()
	idx := make(map[int64]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	if _, ok := idx[source]; !ok {
		return nil, nil, nil, fmt.Errorf("source node %d not in graph", source)
	}
	if _, ok := idx[target]; !ok {
		return nil, nil, nil, fmt.Errorf("target node %d not in graph", target)
	}

	edges := make([][3]float64, 0, g.NumEdges())
	for _, id := range ids {
		for _, e := range g.Out(id) {
			edges = append(edges, [3]float64{float64(idx[e.From]), float64(idx[e.To]), e.LengthM})
		}
	}
	return &solveRequest{
		NodeCount:          len(ids),
		Edges:              edges,
		Source:             idx[source],
		Target:             idx[target],
		ReturnPredecessors: true,
	}, ids, idx, nil
}

// decodeSolution turns a predecessor array back into a node-id path and an
// exploration trace. Every settled node contributes one trace segment from
// its predecessor.
func decodeSolution(g *graph.Graph, ids []int64, preds []int, srcIdx, tgtIdx int) ([]int64, []viz.Segment, error) {
	if len(preds) != len(ids) {
		return nil, nil, fmt.Errorf("predecessor array has %d entries, want %d", len(preds), len(ids))
	}

	var explored []viz.Segment
	for i, p := range preds {
		if p < 0 || i == srcIdx {
			continue
		}
		if p >= len(ids) {
			return nil, nil, fmt.Errorf("predecessor index %d out of range", p)
		}
		if seg, ok := segmentBetween(g, ids[p], ids[i]); ok {
			explored = append(explored, seg)
		}
	}

	var rev []int
	seen := make(map[int]bool)
	cur := tgtIdx
	for {
		if seen[cur] {
			return nil, nil, fmt.Errorf("predecessor array contains a cycle at index %d", cur)
		}
		seen[cur] = true
		rev = append(rev, cur)
		if cur == srcIdx {
			break
		}
		p := preds[cur]
		if p < 0 {
			return nil, nil, routing.ErrNoPathFound
		}
		if p >= len(ids) {
			return nil, nil, fmt.Errorf("predecessor index %d out of range", p)
		}
		cur = p
	}

	path := make([]int64, len(rev))
	for i, j := range rev {
		path[len(rev)-1-i] = ids[j]
	}
	return path, explored, nil
}

func segmentBetween(g *graph.Graph, u, v int64) (viz.Segment, bool) {
	from, ok := g.Node(u)
	if !ok {
		return viz.Segment{}, false
	}
	to, ok := g.Node(v)
	if !ok {
		return viz.Segment{}, false
	}
	return viz.Segment{from.Point, to.Point}, true
}
