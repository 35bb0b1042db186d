package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/godiagram/structure"
)

func TestWriteTree(t *testing.T) {
	order := structure.NodeRef{Package: "shop", File: "order.go", Struct: "Order"}
	customer := structure.NodeRef{Package: "shop", File: "order.go", Struct: "Customer"}
	m := &structure.Model{
		Packages: []*structure.Package{{
			Name: "shop",
			Files: []*structure.File{{
				Name: "order.go",
				Structs: []*structure.Struct{
					{
						Name:    "Order",
						Fields:  []structure.Field{{Name: "Buyer", Type: structure.TypeRef{Literal: "*Customer"}}},
						Methods: []structure.Method{{Name: "Total", ReturnType: []structure.TypeRef{{Literal: "int64"}, {Literal: "error"}}}},
					},
					{Name: "Customer"},
				},
			}},
		}},
		Edges: []structure.Edge{{From: order, To: customer, Field: "Buyer"}},
		GlobalFunctions: []structure.GlobalFunction{{
			Name:       "NewOrder",
			Package:    "shop",
			Parameters: []structure.Parameter{{Name: "c", Type: structure.TypeRef{Literal: "*Customer"}}},
			ReturnType: []structure.TypeRef{{Literal: "*Order"}},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeTree(&buf, "ws://localhost:5874/ws", m))
	out := buf.String()
	require.Contains(t, out, "ws://localhost:5874/ws")
	require.Contains(t, out, "package shop")
	require.Contains(t, out, "type Order")
	require.Contains(t, out, "Buyer *Customer")
	require.Contains(t, out, "func Total() (int64, error)")
	require.Contains(t, out, "→ Customer via Buyer")
	require.Contains(t, out, "NewOrder(c *Customer) *Order")
}

func TestSignature(t *testing.T) {
	require.Equal(t, "Close() error", structure.Signature("Close", nil, []structure.TypeRef{{Literal: "error"}}))
	require.Equal(t, "Reset()", structure.Signature("Reset", nil, nil))
}
