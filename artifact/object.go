package artifact

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrCorruptObject is returned when compiled bytes cannot be decoded into an
// Object or fail their digest check.
var ErrCorruptObject = errors.New("artifact: corrupt object")

// DeclKind classifies a top-level declaration.
type DeclKind string

const (
	DeclFunc  DeclKind = "func"
	DeclType  DeclKind = "type"
	DeclVar   DeclKind = "var"
	DeclConst DeclKind = "const"
)

// Decl names a top-level declaration of a compiled package.
type Decl struct {
	Name string   `cbor:"1,keyasint"`
	Kind DeclKind `cbor:"2,keyasint"`
}

// Object is the payload a toolchain writes into a CompiledUnit: the checked,
// formatted source of one unit plus an index of what it declares.
type Object struct {
	Name    string `cbor:"1,keyasint"`
	Package string `cbor:"2,keyasint"`
	Decls   []Decl `cbor:"3,keyasint"`
	Source  []byte `cbor:"4,keyasint"`
	Digest  []byte `cbor:"5,keyasint"`
}

// Declares returns the declaration of name, if any.
func (o *Object) Declares(name string) (Decl, bool) {
	for _, d := range o.Decls {
		if d.Name == name {
			return d, true
		}
	}
	return Decl{}, false
}

// objEncMode uses canonical encoding so identical objects encode to
// identical bytes.
var objEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: failed to create CBOR enc mode: %v", err))
	}
	objEncMode = em
}

// EncodeObject stamps o with the digest of its source and serializes it.
func EncodeObject(o *Object) ([]byte, error) {
	sum := sha256.Sum256(o.Source)
	o.Digest = sum[:]
	return objEncMode.Marshal(o)
}

// DecodeObject deserializes an object and verifies its digest.
func DecodeObject(data []byte) (*Object, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty unit", ErrCorruptObject)
	}
	var o Object
	if err := cbor.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptObject, err)
	}
	sum := sha256.Sum256(o.Source)
	if !bytes.Equal(sum[:], o.Digest) {
		return nil, fmt.Errorf("%w: digest mismatch for %q", ErrCorruptObject, o.Name)
	}
	return &o, nil
}
