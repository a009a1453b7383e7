package main

import "fmt"

// fileCodeBuilder implements x64.CodeBuilder by accumulating the raw
// code bytes plus a line per relocation, so `build --emit-listing` and
// `disasm` can show exactly what the emitter patched and where —
// there is no real linker/loader downstream to apply these, so this is
// as far as a standalone driver can usefully go (spec.md's Non-goals
// exclude linking/executable file layout).
type fileCodeBuilder struct {
	code []byte
	recs []string
}

func newFileCodeBuilder() *fileCodeBuilder {
	return &fileCodeBuilder{}
}

func (b *fileCodeBuilder) PrepareCode(codeLength int) {
	b.recs = append(b.recs, fmt.Sprintf("prepare_code length=%d", codeLength))
}

func (b *fileCodeBuilder) EmitCode(bytes []byte) {
	b.code = append(b.code, bytes...)
}

func (b *fileCodeBuilder) SetCallSite(offset int, name string) {
	b.recs = append(b.recs, fmt.Sprintf("call_site offset=%d name=%s", offset, name))
}

func (b *fileCodeBuilder) SetCodeOffset(offset int, targetOffset int) {
	b.recs = append(b.recs, fmt.Sprintf("code_offset offset=%d target=%d", offset, targetOffset))
}

func (b *fileCodeBuilder) SetFloat32(offset int, v float32) {
	b.recs = append(b.recs, fmt.Sprintf("float32 offset=%d value=%v", offset, v))
}

func (b *fileCodeBuilder) SetFloat64(offset int, v float64) {
	b.recs = append(b.recs, fmt.Sprintf("float64 offset=%d value=%v", offset, v))
}

func (b *fileCodeBuilder) SetInt32(offset int, v int32) {
	b.recs = append(b.recs, fmt.Sprintf("int32 offset=%d value=%d", offset, v))
}

func (b *fileCodeBuilder) SetInt64(offset int, v int64) {
	b.recs = append(b.recs, fmt.Sprintf("int64 offset=%d value=%d", offset, v))
}

func (b *fileCodeBuilder) SetString(offset int, utf16 []uint16) {
	b.recs = append(b.recs, fmt.Sprintf("string offset=%d len=%d", offset, len(utf16)))
}

func (b *fileCodeBuilder) SetSourceCodeLocation(offset int, id int) {
	b.recs = append(b.recs, fmt.Sprintf("source_location offset=%d id=%d", offset, id))
}

func (b *fileCodeBuilder) FinishCode() {
	b.recs = append(b.recs, "finish_code")
}

func (b *fileCodeBuilder) listing() string {
	s := fmt.Sprintf("code: %d bytes\n", len(b.code))
	for _, r := range b.recs {
		s += r + "\n"
	}
	return s
}
