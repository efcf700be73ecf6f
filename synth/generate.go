package synth

import (
	"fmt"
	"go/format"
	"slices"
	"strconv"
	"strings"

	"github.com/chazu/rungen/callable"
)

// Header marks every generated unit.
const Header = "// Code generated by rungen. DO NOT EDIT."

// Capability is the shape of callable a unit provides.
type Capability uint8

const (
	Transform Capability = iota
	BiTransform
	MethodCaller
)

func (c Capability) String() string {
	switch c {
	case Transform:
		return "transform"
	case BiTransform:
		return "bitransform"
	case MethodCaller:
		return "method caller"
	default:
		return fmt.Sprintf("Capability(%d)", c)
	}
}

// GenerateError reports a request that cannot be rendered as source.
type GenerateError struct {
	Name string
	Msg  string
}

func (e *GenerateError) Error() string {
	if e.Name == "" {
		return "synth: " + e.Msg
	}
	return fmt.Sprintf("synth: %s: %s", e.Name, e.Msg)
}

// Request describes one generated unit.
type Request struct {
	Capability Capability

	// Name is the generated type. The constructor is New<Name>.
	Name string

	// Package is the package clause; empty means DefaultPackage.
	Package string

	// Params and Result type a Transform (one param) or BiTransform (two).
	Params []TypeDesc
	Result TypeDesc

	// Body is the text of Apply. Parameters are named arg for a Transform
	// and arg1, arg2 for a BiTransform.
	Body string

	// Imports are extra import paths the body refers to.
	Imports []string

	// Method is the target of a MethodCaller.
	Method *Method
}

// Constructor returns the name of the unit's no-arg constructor.
func Constructor(name string) string { return "New" + name }

// names generated code declares; imports never take them.
var reserved = []string{"x", "arg", "arg1", "arg2", "recv", "err"}

// locals returns the per-call names a method caller declares.
func locals(req Request) []string {
	if req.Capability != MethodCaller || req.Method == nil {
		return nil
	}
	var names []string
	for i := range req.Method.Params {
		names = append(names, argName(i))
	}
	for i := range req.Method.Values() {
		names = append(names, resultName(i))
	}
	return names
}

func argName(i int) string    { return "a" + strconv.Itoa(i) }
func resultName(i int) string { return "r" + strconv.Itoa(i) }

// Generate renders req as a single formatted compilation unit. A body that
// does not parse is returned unformatted so the compiler can report it.
func Generate(req Request) (string, error) {
	if !ValidIdent(req.Name) || !IsExported(req.Name) {
		return "", &GenerateError{Name: req.Name, Msg: "name must be an exported identifier"}
	}
	pkg := req.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	if !ValidIdent(pkg) {
		return "", &GenerateError{Name: req.Name, Msg: fmt.Sprintf("invalid package name %q", pkg)}
	}

	imports := newImportSet(slices.Concat(reserved, locals(req))...)
	for _, p := range req.Imports {
		imports.add(p, "")
	}

	var body strings.Builder
	var err error
	switch req.Capability {
	case Transform, BiTransform:
		err = genTransform(&body, req, imports)
	case MethodCaller:
		err = genMethodCaller(&body, req, imports)
	default:
		err = &GenerateError{Name: req.Name, Msg: "unknown capability " + req.Capability.String()}
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(Header + "\n\n")
	b.WriteString("package " + pkg + "\n\n")
	imports.write(&b)
	b.WriteString(body.String())

	src := b.String()
	if formatted, err := format.Source([]byte(src)); err == nil {
		src = string(formatted)
	}
	return src, nil
}

func genTransform(b *strings.Builder, req Request, imports *importSet) error {
	want := 1
	if req.Capability == BiTransform {
		want = 2
	}
	if len(req.Params) != want {
		return &GenerateError{Name: req.Name, Msg: fmt.Sprintf("%s takes %d parameter(s), got %d", req.Capability, want, len(req.Params))}
	}
	if req.Result.Kind == 0 && req.Result.Name == "" {
		return &GenerateError{Name: req.Name, Msg: "missing result type"}
	}

	for _, p := range req.Params {
		imports.addType(p)
	}
	imports.addType(req.Result)

	q := imports.qualifier()
	var names []string
	if want == 1 {
		names = []string{"arg"}
	} else {
		names = []string{"arg1", "arg2"}
	}
	var decl []string
	for i, p := range req.Params {
		decl = append(decl, names[i]+" "+p.render(q))
	}
	params := strings.Join(decl, ", ")
	result := req.Result.render(q)

	fmt.Fprintf(b, "type %s struct{}\n\n", req.Name)
	fmt.Fprintf(b, "func (%s) Apply(%s) %s {\n%s\n}\n\n", req.Name, params, result, req.Body)
	fmt.Fprintf(b, "func %s() func(%s) %s {\n", Constructor(req.Name), params, result)
	fmt.Fprintf(b, "\tvar x %s\n", req.Name)
	fmt.Fprintf(b, "\treturn func(%s) %s {\n\t\treturn x.Apply(%s)\n\t}\n}\n", params, result, strings.Join(names, ", "))
	return nil
}

func genMethodCaller(b *strings.Builder, req Request, imports *importSet) error {
	m := req.Method
	if m == nil {
		return &GenerateError{Name: req.Name, Msg: "method caller without a method"}
	}
	if !ValidIdent(m.Name) || !IsExported(m.Name) {
		return &GenerateError{Name: req.Name, Msg: fmt.Sprintf("method %q is not exported", m.Name)}
	}

	// Signature types claim their package names before the helper imports.
	imports.addType(m.Recv)
	for _, p := range m.Params {
		imports.addType(p)
	}
	q := imports.qualifier()
	fmtPkg := imports.add("fmt", "fmt")
	recvType := m.Recv.render(q)
	box := m.Recv.Boxed().render(q)

	fmt.Fprintf(b, "type %s struct{}\n\n", req.Name)
	fmt.Fprintf(b, "func (%s) Apply(arg1 %s, arg2 []%s) (%s, error) {\n", req.Name, box, box, box)
	fmt.Fprintf(b, "\tif len(arg2) != %d {\n", len(m.Params))
	fmt.Fprintf(b, "\t\treturn nil, %s.Errorf(\"%s: want %d arguments, got %%d\", len(arg2))\n\t}\n",
		fmtPkg, m.Name, len(m.Params))
	fmt.Fprintf(b, "\trecv := arg1.(%s)\n", recvType)

	var args []string
	for i, p := range m.Params {
		a := argName(i)
		t := p.render(q)
		fmt.Fprintf(b, "\tvar %s %s\n", a, t)
		fmt.Fprintf(b, "\tif arg2[%d] != nil {\n\t\t%s = arg2[%d].(%s)\n\t}\n", i, a, i, t)
		if m.Variadic && i == len(m.Params)-1 {
			a += "..."
		}
		args = append(args, a)
	}
	call := "recv." + m.Name + "(" + strings.Join(args, ", ") + ")"

	values := m.Values()
	var lhs []string
	for i := range values {
		lhs = append(lhs, resultName(i))
	}
	errResult := "nil"
	if m.ReturnsErr {
		lhs = append(lhs, "err")
		errResult = "err"
	}
	if len(lhs) > 0 {
		fmt.Fprintf(b, "\t%s := %s\n", strings.Join(lhs, ", "), call)
	} else {
		fmt.Fprintf(b, "\t%s\n", call)
	}

	switch len(values) {
	case 0:
		cpkg := imports.add(callable.ImportPath, "callable")
		fmt.Fprintf(b, "\treturn %s.NoResult, %s\n", cpkg, errResult)
	case 1:
		fmt.Fprintf(b, "\treturn r0, %s\n", errResult)
	default:
		fmt.Fprintf(b, "\treturn []any{%s}, %s\n", strings.Join(lhs[:len(values)], ", "), errResult)
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "func %s() func(%s, []%s) (%s, error) {\n", Constructor(req.Name), box, box, box)
	fmt.Fprintf(b, "\tvar x %s\n", req.Name)
	fmt.Fprintf(b, "\treturn func(recv %s, args []%s) (%s, error) {\n\t\treturn x.Apply(recv, args)\n\t}\n}\n", box, box, box)
	return nil
}
