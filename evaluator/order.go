package evaluator

import (
	"fmt"
	"strings"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/network"
	"github.com/c360/vizflow/processor"
)

// Order returns the processors of net sorted so that for every connection
// the producing processor comes before the consuming one. Among processors
// whose producers are all placed, insertion order decides. A connection
// cycle yields ErrConnectionCycle naming the processors on or behind it.
func Order(net *network.Network) ([]processor.Processor, error) {
	procs := net.Processors()
	index := make(map[processor.Processor]int, len(procs))
	for i, p := range procs {
		index[p] = i
	}

	indegree := make([]int, len(procs))
	successors := make([][]int, len(procs))
	seen := make(map[[2]int]bool)
	for _, c := range net.Connections() {
		from, okFrom := processor.OwnerOfPort(c.Outport)
		to, okTo := processor.OwnerOfPort(c.Inport)
		if !okFrom || !okTo {
			continue
		}
		edge := [2]int{index[from], index[to]}
		if seen[edge] {
			continue
		}
		seen[edge] = true
		successors[edge[0]] = append(successors[edge[0]], edge[1])
		indegree[edge[1]]++
	}

	placed := make([]bool, len(procs))
	order := make([]processor.Processor, 0, len(procs))
	for len(order) < len(procs) {
		next := -1
		for i := range procs {
			if !placed[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		placed[next] = true
		order = append(order, procs[next])
		for _, s := range successors[next] {
			indegree[s]--
		}
	}

	if len(order) < len(procs) {
		var stuck []string
		for i, p := range procs {
			if !placed[i] {
				stuck = append(stuck, p.Identifier())
			}
		}
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrConnectionCycle, strings.Join(stuck, ", ")),
			"Evaluator", "Order", "topological sort")
	}
	return order, nil
}
