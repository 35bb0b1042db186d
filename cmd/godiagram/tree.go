package main

import (
	"io"

	"github.com/ddddddO/gtree"

	"github.com/lexcodex/godiagram/structure"
)

// writeTree prints the model as packages, files, structs and their members.
func writeTree(w io.Writer, title string, m *structure.Model) error {
	root := gtree.NewRoot(title)
	outgoing := make(map[structure.NodeRef][]structure.Edge)
	for _, e := range m.Edges {
		outgoing[e.From] = append(outgoing[e.From], e)
	}
	functions := make(map[string][]structure.GlobalFunction)
	for _, fn := range m.GlobalFunctions {
		functions[fn.Package] = append(functions[fn.Package], fn)
	}
	for _, pkg := range m.Packages {
		pkgNode := root.Add("package " + pkg.Name)
		for _, file := range pkg.Files {
			fileNode := pkgNode.Add(file.Name)
			for _, st := range file.Structs {
				ref := structure.NodeRef{Package: pkg.Name, File: file.Name, Struct: st.Name}
				stNode := fileNode.Add("type " + st.Name)
				for _, f := range st.Fields {
					stNode.Add(f.Name + " " + f.Type.Literal)
				}
				for _, method := range st.Methods {
					stNode.Add("func " + method.Signature())
				}
				for _, e := range outgoing[ref] {
					label := "→ " + e.To.Struct
					if e.Field != "" {
						label += " via " + e.Field
					}
					stNode.Add(label)
				}
			}
		}
		if fns := functions[pkg.Name]; len(fns) > 0 {
			fnNode := pkgNode.Add("functions")
			for _, fn := range fns {
				fnNode.Add(fn.Signature())
			}
		}
	}
	return gtree.OutputFromRoot(w, root)
}
