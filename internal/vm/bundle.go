package vm

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Bundle file layout:
//   - Magic number (4 bytes): "ALLB"
//   - Version (1 byte): 0x01
//   - Canonical CBOR of the bundle payload
var bundleMagic = [4]byte{'A', 'L', 'L', 'B'}

// BundleVersion is bumped whenever the instruction set or payload changes
const BundleVersion byte = 0x01

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Bundle is a compiled program ready to be written to disk
type Bundle struct {
	BuildID    string
	SourceFile string
	Main       *Program
}

// NewBundle wraps prog with a fresh build id
func NewBundle(prog *Program, sourceFile string) *Bundle {
	return &Bundle{
		BuildID:    uuid.New().String(),
		SourceFile: sourceFile,
		Main:       prog,
	}
}

type bundlePayload struct {
	BuildID    string     `cbor:"1,keyasint"`
	SourceFile string     `cbor:"2,keyasint,omitempty"`
	Main       programDTO `cbor:"3,keyasint"`
}

type programDTO struct {
	Code      []byte        `cbor:"1,keyasint"`
	Constants []constantDTO `cbor:"2,keyasint,omitempty"`
	Variables []string      `cbor:"3,keyasint,omitempty"`
	Lines     []int         `cbor:"4,keyasint,omitempty"`
}

// Constant kinds in the payload
const (
	constInt uint8 = iota + 1
	constFloat
	constBool
	constString
	constBuiltin
	constFunction
	constClass
)

type constantDTO struct {
	Kind     uint8        `cbor:"1,keyasint"`
	Int      int64        `cbor:"2,keyasint,omitempty"`
	Float    float64      `cbor:"3,keyasint,omitempty"`
	Bool     bool         `cbor:"4,keyasint,omitempty"`
	Str      string       `cbor:"5,keyasint,omitempty"`
	Function *functionDTO `cbor:"6,keyasint,omitempty"`
	Class    *classDTO    `cbor:"7,keyasint,omitempty"`
}

type functionDTO struct {
	Name     string       `cbor:"1,keyasint"`
	Params   []string     `cbor:"2,keyasint,omitempty"`
	Program  programDTO   `cbor:"3,keyasint"`
	Captures []captureDTO `cbor:"4,keyasint,omitempty"`
	IsMethod bool         `cbor:"5,keyasint,omitempty"`
	Line     int          `cbor:"6,keyasint,omitempty"`
}

type captureDTO struct {
	Name    string `cbor:"1,keyasint"`
	Index   int    `cbor:"2,keyasint"`
	IsLocal bool   `cbor:"3,keyasint,omitempty"`
}

type classDTO struct {
	Name       string        `cbor:"1,keyasint"`
	FieldNames []string      `cbor:"2,keyasint,omitempty"`
	Methods    []functionDTO `cbor:"3,keyasint,omitempty"`
	Line       int           `cbor:"4,keyasint,omitempty"`
}

// Serialize encodes the bundle with its header
func (b *Bundle) Serialize() ([]byte, error) {
	main, err := programToDTO(b.Main)
	if err != nil {
		return nil, err
	}
	payload, err := cborEncMode.Marshal(bundlePayload{
		BuildID:    b.BuildID,
		SourceFile: b.SourceFile,
		Main:       main,
	})
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(bundleMagic[:])
	buf.WriteByte(BundleVersion)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// DeserializeBundle decodes data produced by Serialize
func DeserializeBundle(data []byte) (*Bundle, error) {
	if len(data) < len(bundleMagic)+1 {
		return nil, fmt.Errorf("bundle too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], bundleMagic[:]) {
		return nil, fmt.Errorf("not an alla bundle: bad magic %q", data[:4])
	}
	if version := data[4]; version != BundleVersion {
		return nil, fmt.Errorf("unsupported bundle version 0x%02x (expected 0x%02x)", version, BundleVersion)
	}

	var payload bundlePayload
	if err := cbor.Unmarshal(data[5:], &payload); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	main, err := programFromDTO(payload.Main)
	if err != nil {
		return nil, err
	}
	return &Bundle{BuildID: payload.BuildID, SourceFile: payload.SourceFile, Main: main}, nil
}

func programToDTO(p *Program) (programDTO, error) {
	dto := programDTO{
		Code:      p.Code,
		Variables: p.Variables,
		Lines:     p.Lines,
	}
	for i, c := range p.Constants {
		cd, err := constantToDTO(c)
		if err != nil {
			return programDTO{}, fmt.Errorf("constant %d: %w", i, err)
		}
		dto.Constants = append(dto.Constants, cd)
	}
	return dto, nil
}

func constantToDTO(v Value) (constantDTO, error) {
	switch v.Type {
	case ValInt:
		return constantDTO{Kind: constInt, Int: v.AsInt()}, nil
	case ValFloat:
		return constantDTO{Kind: constFloat, Float: v.AsFloat()}, nil
	case ValBool:
		return constantDTO{Kind: constBool, Bool: v.AsBool()}, nil
	case ValObj:
		switch o := v.Obj.(type) {
		case *String:
			return constantDTO{Kind: constString, Str: o.Value}, nil
		case *Builtin:
			return constantDTO{Kind: constBuiltin, Str: o.Name}, nil
		case *FunctionProto:
			fd, err := functionToDTO(o)
			if err != nil {
				return constantDTO{}, err
			}
			return constantDTO{Kind: constFunction, Function: &fd}, nil
		case *ClassProto:
			cd := classDTO{Name: o.Name, FieldNames: o.FieldNames, Line: o.Line}
			for _, m := range o.Methods {
				md, err := functionToDTO(m)
				if err != nil {
					return constantDTO{}, err
				}
				cd.Methods = append(cd.Methods, md)
			}
			return constantDTO{Kind: constClass, Class: &cd}, nil
		}
	}
	return constantDTO{}, fmt.Errorf("cannot serialize %s constant", v.TypeName())
}

func functionToDTO(f *FunctionProto) (functionDTO, error) {
	prog, err := programToDTO(f.Program)
	if err != nil {
		return functionDTO{}, fmt.Errorf("function %s: %w", f.Name, err)
	}
	fd := functionDTO{
		Name:     f.Name,
		Params:   f.Params,
		Program:  prog,
		IsMethod: f.IsMethod,
		Line:     f.Line,
	}
	for _, c := range f.Captures {
		fd.Captures = append(fd.Captures, captureDTO{Name: c.Name, Index: c.Index, IsLocal: c.IsLocal})
	}
	return fd, nil
}

func programFromDTO(dto programDTO) (*Program, error) {
	if len(dto.Code)%InstructionSize != 0 {
		return nil, fmt.Errorf("bytecode length %d is not a multiple of %d", len(dto.Code), InstructionSize)
	}
	p := &Program{
		Code:      dto.Code,
		Variables: dto.Variables,
		Lines:     dto.Lines,
	}
	for i, cd := range dto.Constants {
		c, err := constantFromDTO(cd)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		p.Constants = append(p.Constants, c)
	}
	return p, nil
}

func constantFromDTO(cd constantDTO) (Value, error) {
	switch cd.Kind {
	case constInt:
		return IntVal(cd.Int), nil
	case constFloat:
		return FloatVal(cd.Float), nil
	case constBool:
		return BoolVal(cd.Bool), nil
	case constString:
		return StringVal(cd.Str), nil
	case constBuiltin:
		b, ok := LookupBuiltin(cd.Str)
		if !ok {
			return NilVal(), fmt.Errorf("unknown builtin %q", cd.Str)
		}
		return ObjVal(b), nil
	case constFunction:
		if cd.Function == nil {
			return NilVal(), fmt.Errorf("function constant without body")
		}
		f, err := functionFromDTO(*cd.Function)
		if err != nil {
			return NilVal(), err
		}
		return ObjVal(f), nil
	case constClass:
		if cd.Class == nil {
			return NilVal(), fmt.Errorf("class constant without body")
		}
		c := &ClassProto{Name: cd.Class.Name, FieldNames: cd.Class.FieldNames, Line: cd.Class.Line}
		for _, md := range cd.Class.Methods {
			m, err := functionFromDTO(md)
			if err != nil {
				return NilVal(), err
			}
			c.Methods = append(c.Methods, m)
		}
		return ObjVal(c), nil
	}
	return NilVal(), fmt.Errorf("unknown constant kind %d", cd.Kind)
}

func functionFromDTO(fd functionDTO) (*FunctionProto, error) {
	prog, err := programFromDTO(fd.Program)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fd.Name, err)
	}
	f := &FunctionProto{
		Name:     fd.Name,
		Params:   fd.Params,
		Program:  prog,
		IsMethod: fd.IsMethod,
		Line:     fd.Line,
	}
	for _, c := range fd.Captures {
		f.Captures = append(f.Captures, CaptureInfo{Name: c.Name, Index: c.Index, IsLocal: c.IsLocal})
	}
	return f, nil
}

// EncodeProgram is the headerless payload stored in the bytecode cache
func EncodeProgram(p *Program) ([]byte, error) {
	dto, err := programToDTO(p)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(dto)
}

// DecodeProgram reverses EncodeProgram
func DecodeProgram(data []byte) (*Program, error) {
	var dto programDTO
	if err := cbor.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return programFromDTO(dto)
}
