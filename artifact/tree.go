// ABOUTME: Flattens an artifact's file paths into visible tree rows for file explorers.
// ABOUTME: Collapsed folders hide their descendants; rows are ordered folders-first by name.
package artifact

import (
	"sort"
	"strings"
)

// Row is one visible line of a file tree.
type Row struct {
	Path     string
	Name     string
	Depth    int
	IsDir    bool
	FileID   string
	Expanded bool
}

type treeNode struct {
	name     string
	path     string
	fileID   string
	children map[string]*treeNode
}

// VisibleRows returns the rows of the tree that are visible given the expanded
// folder predicate.
func VisibleRows(files []File, expanded func(prefix string) bool) []Row {
	root := &treeNode{children: make(map[string]*treeNode)}
	for _, f := range files {
		node := root
		parts := strings.Split(f.Path, "/")
		for i, part := range parts {
			child, ok := node.children[part]
			if !ok {
				child = &treeNode{
					name:     part,
					path:     strings.Join(parts[:i+1], "/"),
					children: make(map[string]*treeNode),
				}
				node.children[part] = child
			}
			if i == len(parts)-1 {
				child.fileID = f.ID
			}
			node = child
		}
	}

	var rows []Row
	var walk func(n *treeNode, depth int)
	walk = func(n *treeNode, depth int) {
		kids := make([]*treeNode, 0, len(n.children))
		for _, c := range n.children {
			kids = append(kids, c)
		}
		sort.Slice(kids, func(i, j int) bool {
			di, dj := kids[i].fileID == "", kids[j].fileID == ""
			if di != dj {
				return di
			}
			return kids[i].name < kids[j].name
		})
		for _, c := range kids {
			if c.fileID != "" {
				rows = append(rows, Row{Path: c.path, Name: c.name, Depth: depth, FileID: c.fileID})
				continue
			}
			open := expanded(c.path)
			rows = append(rows, Row{Path: c.path, Name: c.name, Depth: depth, IsDir: true, Expanded: open})
			if open {
				walk(c, depth+1)
			}
		}
	}
	walk(root, 0)
	return rows
}
