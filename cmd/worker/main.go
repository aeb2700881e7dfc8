// Reference external solver speaking the line protocol: one JSON request per
// stdin line, one JSON response per stdout line. Runs Dijkstra in dense index
// space and answers with the predecessor array (-1 = no predecessor).
package main

import (
	"bufio"
	"container/heap"
	"encoding/json"
	"fmt"
	"os"
)

type request struct {
	NodeCount          int          `json:"nodeCount"`
	Edges              [][3]float64 `json:"edges"`
	Source             int          `json:"source"`
	Target             int          `json:"target"`
	ReturnPredecessors bool         `json:"returnPredecessors"`
}

type response struct {
	Predecessors []int  `json:"predecessors,omitempty"`
	Error        string `json:"error,omitempty"`
}

func main() {
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	out := bufio.NewWriter(os.Stdout)
	enc := json.NewEncoder(out)

	for in.Scan() {
		var req request
		if err := json.Unmarshal(in.Bytes(), &req); err != nil {
			enc.Encode(response{Error: fmt.Sprintf("bad request: %v", err)})
			out.Flush()
			continue
		}
		preds, err := solve(&req)
		if err != nil {
			enc.Encode(response{Error: err.Error()})
		} else {
			enc.Encode(response{Predecessors: preds})
		}
		out.Flush()
	}
}

func solve(req *request) ([]int, error) {
	n := req.NodeCount
	if n <= 0 {
		return nil, fmt.Errorf("nodeCount must be positive, got %d", n)
	}
	if req.Source < 0 || req.Source >= n || req.Target < 0 || req.Target >= n {
		return nil, fmt.Errorf("source/target out of range")
	}

	adj := make([][]arc, n)
	for _, e := range req.Edges {
		from, to := int(e[0]), int(e[1])
		if from < 0 || from >= n || to < 0 || to >= n {
			return nil, fmt.Errorf("edge endpoint out of range: %v", e)
		}
		adj[from] = append(adj[from], arc{to: to, w: e[2]})
	}

	const unset = -1
	dist := make([]float64, n)
	preds := make([]int, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = -1
		preds[i] = unset
	}
	dist[req.Source] = 0

	pq := &arcHeap{{to: req.Source, w: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(arc)
		u := cur.to
		if done[u] {
			continue
		}
		done[u] = true
		if u == req.Target {
			break
		}
		for _, a := range adj[u] {
			if done[a.to] {
				continue
			}
			nd := cur.w + a.w
			if dist[a.to] < 0 || nd < dist[a.to] {
				dist[a.to] = nd
				preds[a.to] = u
				heap.Push(pq, arc{to: a.to, w: nd})
			}
		}
	}
	return preds, nil
}

type arc struct {
	to int
	w  float64
}

type arcHeap []arc

func (h arcHeap) Len() int           { return len(h) }
func (h arcHeap) Less(i, j int) bool { return h[i].w < h[j].w }
func (h arcHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *arcHeap) Push(x any)        { *h = append(*h, x.(arc)) }
func (h *arcHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
