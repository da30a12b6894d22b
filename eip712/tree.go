package eip712

import (
	"fmt"
)

// node is one element of the typed value tree. The tree is built once from
// the type graph plus the message, then traversed structurally; traversal
// order therefore follows type declaration order, never input key order.
type node struct {
	path      string
	array     bool
	composite bool
	children  []*node
	value     []byte // encoded leaf
}

// buildTree resolves typeName against the type map and folds value into a
// traversal-ready tree.
func buildTree(types map[string]*resolvedType, typeName string, value map[string]interface{}, path string) (*node, error) {
	rt, ok := types[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedType, typeName)
	}

	out := &node{path: path, composite: true}
	for _, f := range rt.fields {
		v, ok := value[f.name]
		if !ok {
			return nil, fmt.Errorf("eip712: missing value for field %s", joinPath(path, f.name))
		}
		child, err := buildNode(types, f.typ, v, joinPath(path, f.name))
		if err != nil {
			return nil, err
		}
		out.children = append(out.children, child)
	}
	return out, nil
}

func buildNode(types map[string]*resolvedType, typ FieldType, value interface{}, path string) (*node, error) {
	if len(typ.Arrays) > 0 {
		elems, ok := value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("eip712: expected array at %s", path)
		}
		marker := typ.Arrays[0]
		if marker.Fixed && len(elems) != marker.Size {
			return nil, fmt.Errorf("eip712: array at %s has %d elements, declared %d", path, len(elems), marker.Size)
		}
		if len(elems) > 255 {
			return nil, fmt.Errorf("eip712: array at %s too long", path)
		}

		elemType := typ
		elemType.Arrays = typ.Arrays[1:]

		out := &node{path: path, array: true}
		for _, e := range elems {
			child, err := buildNode(types, elemType, e, path+".[]")
			if err != nil {
				return nil, err
			}
			out.children = append(out.children, child)
		}
		return out, nil
	}

	if typ.Kind == KindCustom {
		obj, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("eip712: expected object at %s", path)
		}
		return buildTree(types, typ.Custom, obj, path)
	}

	encoded, err := encodeValue(typ, value)
	if err != nil {
		return nil, fmt.Errorf("%v (at %s)", err, path)
	}
	return &node{path: path, value: encoded}, nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
