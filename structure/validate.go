package structure

// Validate checks the naming invariants: every package, file and struct is
// present and named, package names are unique in the model, file names within
// their package and struct names within their file.
func Validate(m *Model) error {
	if m == nil {
		return nil
	}
	packages := make(map[string]struct{}, len(m.Packages))
	for _, pkg := range m.Packages {
		if pkg == nil {
			return &InvalidEntry{Scope: "model", Kind: "package", Null: true}
		}
		if pkg.Name == "" {
			return &InvalidEntry{Scope: "model", Kind: "package"}
		}
		if _, dup := packages[pkg.Name]; dup {
			return &UniquenessViolation{Scope: "model", Name: pkg.Name}
		}
		packages[pkg.Name] = struct{}{}
		if err := validatePackage(pkg); err != nil {
			return err
		}
	}
	return nil
}

func validatePackage(pkg *Package) error {
	scope := "package " + pkg.Name
	files := make(map[string]struct{}, len(pkg.Files))
	for _, file := range pkg.Files {
		if file == nil {
			return &InvalidEntry{Scope: scope, Kind: "file", Null: true}
		}
		if file.Name == "" {
			return &InvalidEntry{Scope: scope, Kind: "file"}
		}
		if _, dup := files[file.Name]; dup {
			return &UniquenessViolation{Scope: scope, Name: file.Name}
		}
		files[file.Name] = struct{}{}
		if err := validateFile(pkg.Name, file); err != nil {
			return err
		}
	}
	return nil
}

func validateFile(pkgName string, file *File) error {
	scope := "file " + pkgName + "/" + file.Name
	structs := make(map[string]struct{}, len(file.Structs))
	for _, st := range file.Structs {
		if st == nil {
			return &InvalidEntry{Scope: scope, Kind: "struct", Null: true}
		}
		if st.Name == "" {
			return &InvalidEntry{Scope: scope, Kind: "struct"}
		}
		if _, dup := structs[st.Name]; dup {
			return &UniquenessViolation{Scope: scope, Name: st.Name}
		}
		structs[st.Name] = struct{}{}
	}
	return nil
}
