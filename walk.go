package taproot

import "errors"

// WalkFunc visits one node. Returning SkipSubtree prunes the node's children
// without stopping the traversal; any other non-nil error aborts the walk and
// is returned from Walk unchanged.
type WalkFunc func(n Node) error

// Walk traverses the tree rooted at n in depth-first source order, calling
// fn for every node.
func Walk(n Node, fn WalkFunc) error {
	if n == nil {
		return nil
	}
	err := fn(n)
	if errors.Is(err, SkipSubtree) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, child := range n.Children() {
		if child == nil {
			continue
		}
		if err := Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Descendants returns every node under n, n excluded, in source order.
func Descendants(n Node) []Node {
	var out []Node
	for _, child := range n.Children() {
		if child == nil {
			continue
		}
		Walk(child, func(d Node) error {
			out = append(out, d)
			return nil
		})
	}
	return out
}

// FindAll collects the nodes under n satisfying pred, n included.
func FindAll(n Node, pred func(Node) bool) []Node {
	var out []Node
	Walk(n, func(d Node) error {
		if pred(d) {
			out = append(out, d)
		}
		return nil
	})
	return out
}
