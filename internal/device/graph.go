package device

import "time"

// GraphEdge is a radio link from Source to Dest, both indexes into Graph.Nodes.
type GraphEdge struct {
	Source      int  `json:"source"`
	Dest        int  `json:"dest"`
	RSSI        int  `json:"rssi"`
	LinkQuality int  `json:"link_quality"`
	RxOnIdle    bool `json:"rx_on_idle"`
	Child       bool `json:"child"`
	FTD         bool `json:"ftd"`
	FND         bool `json:"fnd"`
}

// Graph is the mesh topology built from reported neighbor tables.
type Graph struct {
	Nodes []View      `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

func (Graph) Kind() string { return "MeshGraph" }

// Graph links every device to the neighbors it reported, matching
// neighbors to devices by mesh address. Unmatched neighbors are skipped.
func (r *Registry) Graph(now time.Time) Graph {
	devs := r.List()
	g := Graph{Nodes: make([]View, 0, len(devs)), Edges: []GraphEdge{}}
	byRloc := make(map[uint16]int, len(devs))
	for i, d := range devs {
		g.Nodes = append(g.Nodes, NewView(d, now))
		byRloc[d.Record().Rloc16] = i
	}
	for i, d := range devs {
		ns, err := r.Neighbors(d.Identity())
		if err != nil {
			continue
		}
		for _, n := range ns {
			j, ok := byRloc[n.Rloc16]
			if !ok || j == i {
				continue
			}
			g.Edges = append(g.Edges, GraphEdge{
				Source:      i,
				Dest:        j,
				RSSI:        int(n.AverageRSSI),
				LinkQuality: int(n.LinkQuality),
				RxOnIdle:    n.RadioAlwaysOn,
				Child:       n.IsChild,
				FTD:         n.FullThreadDevice,
				FND:         n.FullNetworkData,
			})
		}
	}
	return g
}
