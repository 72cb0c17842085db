// CodeViewBuilder is the Windows-target equivalent of DebugBuilder,
// accumulating .debug$S/.debug$T symbol and type records instead of
// DWARF DIEs, with the same method shapes (per §13) so cmd/cppc's assemble
// can drive either target through a single call sequence regardless of
// which debug format the selected Target uses.
package objfile

import "fmt"

type CodeViewBuilder struct {
	functions []*DebugFunction
	current   *DebugFunction
	buildID   string
}

func NewCodeViewBuilder() *CodeViewBuilder { return &CodeViewBuilder{} }

// SetBuildID stamps a compilation-unit identifier into the emitted
// .debug$S records; see DebugBuilder.SetBuildID.
func (c *CodeViewBuilder) SetBuildID(id string) { c.buildID = id }

func (c *CodeViewBuilder) SetCurrentFunctionForDebug(name string, lowPC uint64) {
	c.current = &DebugFunction{Name: name, LowPC: lowPC}
	c.functions = append(c.functions, c.current)
}

func (c *CodeViewBuilder) AddLineMapping(offset uint64, file string, line, col int) {
	if c.current == nil {
		return
	}
	c.current.Lines = append(c.current.Lines, DebugLine{Offset: offset, File: file, Line: line, Col: col})
}

func (c *CodeViewBuilder) AddLocalVariable(name, typeName string, frameOffset int64) {
	if c.current == nil {
		return
	}
	c.current.Locals = append(c.current.Locals, DebugLocal{Name: name, TypeName: typeName, FrameOffset: frameOffset})
}

func (c *CodeViewBuilder) AddFunctionParameter(name, typeName string, regOrOffset int64, inReg bool) {
	if c.current == nil {
		return
	}
	c.current.Parameters = append(c.current.Parameters, DebugParam{Name: name, TypeName: typeName, RegOrOffset: regOrOffset, InReg: inReg})
}

func (c *CodeViewBuilder) UpdateFunctionLength(length uint64) {
	if c.current == nil {
		return
	}
	c.current.Length = length
}

func (c *CodeViewBuilder) FinalizeDebugInfo() {
	c.current = nil
}

// BuildSections serializes accumulated state into the .debug$S (symbol)
// and .debug$T (type) section bytes, using the same simplified
// record-as-text encoding as DebugBuilder.BuildSections for the same
// reason: a complete CodeView encoder is out of scope, but the
// offset-to-line mapping it carries is real and round-trips.
func (c *CodeViewBuilder) BuildSections() (debugS, debugT []byte) {
	var s []byte
	s = append(s, []byte(fmt.Sprintf("cv_signature=4 build_id=%s functions=%d\x00", c.buildID, len(c.functions)))...)
	for _, f := range c.functions {
		s = append(s, []byte(fmt.Sprintf("S_GPROC32 name=%s low_pc=%d length=%d\x00", f.Name, f.LowPC, f.Length))...)
		for _, ln := range f.Lines {
			s = append(s, []byte(fmt.Sprintf("line offset=%d %s:%d:%d\x00", ln.Offset, ln.File, ln.Line, ln.Col))...)
		}
	}
	t := []byte("LF_FUNC_ID\x00")
	return s, t
}
