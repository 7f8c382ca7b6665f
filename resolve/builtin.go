package resolve

import "github.com/meigma/assetimport/internal/pathutil"

const builtinOrigin = "built-in"

// builtinLoader loads modules compiled into the runtime. They have no code
// or files of their own and can never be renamed.
type builtinLoader struct {
	name string
}

func builtinSpec(name string) *Spec {
	return &Spec{
		Name:   name,
		Origin: builtinOrigin,
		Kind:   BuiltinModule,
		Loader: builtinLoader{name: name},
	}
}

func (b builtinLoader) checkName(name string) error {
	_, want := pathutil.SplitModule(b.name)
	_, got := pathutil.SplitModule(name)
	if want != got {
		return &RenameError{Name: b.name, Alias: name}
	}
	return nil
}

func (b builtinLoader) IsPackage(name string) (bool, error) {
	return false, b.checkName(name)
}

func (b builtinLoader) GetCode(name string) ([]byte, error) {
	return nil, b.checkName(name)
}

func (b builtinLoader) GetSource(name string) (string, bool, error) {
	return "", false, b.checkName(name)
}

func (b builtinLoader) GetFilename(name string) (string, error) {
	return "", b.checkName(name)
}

func (b builtinLoader) Exec(m *Module) error {
	return b.checkName(m.Name)
}
