package language

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Language blobs are sectioned little-endian buffers: a 4-byte magic, the
// ABI version, then the tables in a fixed order. Decode validates counts
// and index bounds before constructing the Language; the blob never
// carries scanner callbacks, which are attached at decode time.

var blobMagic = [4]byte{'C', 'D', 'R', 'L'}

// ErrBadBlob reports a structurally invalid language blob.
var ErrBadBlob = errors.New("language: malformed blob")

type blobWriter struct {
	buf []byte
}

func (w *blobWriter) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *blobWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *blobWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *blobWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *blobWriter) i32(v int32)  { w.u32(uint32(v)) }
func (w *blobWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

type blobReader struct {
	buf []byte
	pos int
	err error
}

func (r *blobReader) fail() {
	if r.err == nil {
		r.err = ErrBadBlob
	}
}

func (r *blobReader) u8() uint8 {
	if r.err != nil || r.pos+1 > len(r.buf) {
		r.fail()
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *blobReader) bool() bool { return r.u8() != 0 }

func (r *blobReader) u16() uint16 {
	if r.err != nil || r.pos+2 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *blobReader) u32() uint32 {
	if r.err != nil || r.pos+4 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *blobReader) i32() int32 { return int32(r.u32()) }

func (r *blobReader) str() string {
	n := int(r.u32())
	if r.err != nil || n < 0 || r.pos+n > len(r.buf) {
		r.fail()
		return ""
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s
}

// count reads a length prefix, bounding it by the remaining buffer so a
// corrupt blob cannot trigger a huge allocation.
func (r *blobReader) count(elemSize int) int {
	n := int(r.u32())
	if r.err != nil {
		return 0
	}
	if elemSize < 1 {
		elemSize = 1
	}
	if n < 0 || n > (len(r.buf)-r.pos)/elemSize {
		r.fail()
		return 0
	}
	return n
}

// Encode serializes a language's tables. Scanner callbacks are not
// serialized; attach them on decode with DecodeWithScanner.
func Encode(l *Language) []byte {
	def := &l.def
	w := &blobWriter{}
	w.buf = append(w.buf, blobMagic[:]...)
	w.u32(def.Version)
	w.str(def.Name)

	w.u32(uint32(len(def.SymbolNames)))
	for i, name := range def.SymbolNames {
		w.str(name)
		meta := def.SymbolMeta[i]
		var flags uint8
		if meta.Visible {
			flags |= 1
		}
		if meta.Named {
			flags |= 2
		}
		if meta.Extra {
			flags |= 4
		}
		if meta.Supertype {
			flags |= 8
		}
		w.u8(flags)
	}

	w.u32(uint32(len(def.FieldNames)))
	for _, name := range def.FieldNames {
		w.str(name)
	}

	w.u32(uint32(len(def.Productions)))
	for _, prod := range def.Productions {
		w.u32(uint32(len(prod.Aliases)))
		for _, alias := range prod.Aliases {
			w.u16(uint16(alias))
		}
		w.u32(uint32(len(prod.Fields)))
		for _, entry := range prod.Fields {
			w.u16(uint16(entry.Field))
			w.u8(entry.ChildIndex)
			w.bool(entry.Inherited)
		}
	}

	w.u32(uint32(len(def.Actions)))
	for state := range def.Actions {
		writeSymbolActions(w, def.Actions[state])
		writeGotos(w, def.Gotos[state])
		mode := def.LexModes[state]
		w.u16(mode.State)
		w.u16(mode.ExternalState)
	}

	writeLexStates(w, def.LexStates)
	writeLexStates(w, def.KeywordLexStates)
	w.u16(uint16(def.KeywordCapture))

	w.u32(uint32(len(def.ExternalTokens)))
	for _, sym := range def.ExternalTokens {
		w.u16(uint16(sym))
	}
	w.u32(uint32(len(def.ExternalScannerStates)))
	for _, valid := range def.ExternalScannerStates {
		w.u32(uint32(len(valid)))
		for _, v := range valid {
			w.bool(v)
		}
	}

	w.u32(uint32(len(def.Supertypes)))
	for _, sym := range def.Supertypes {
		w.u16(uint16(sym))
	}
	supers := make([]Symbol, 0, len(def.Subtypes))
	for sym := range def.Subtypes {
		supers = append(supers, sym)
	}
	sort.Slice(supers, func(i, j int) bool { return supers[i] < supers[j] })
	w.u32(uint32(len(supers)))
	for _, sym := range supers {
		w.u16(uint16(sym))
		subs := def.Subtypes[sym]
		w.u32(uint32(len(subs)))
		for _, sub := range subs {
			w.u16(uint16(sub))
		}
	}

	w.u32(def.MaxLookaheadBytes)
	return w.buf
}

func writeSymbolActions(w *blobWriter, actions map[Symbol][]ParseAction) {
	syms := make([]Symbol, 0, len(actions))
	for sym := range actions {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	w.u32(uint32(len(syms)))
	for _, sym := range syms {
		w.u16(uint16(sym))
		entries := actions[sym]
		w.u32(uint32(len(entries)))
		for _, a := range entries {
			w.u8(uint8(a.Type))
			w.u16(uint16(a.State))
			w.bool(a.Extra)
			w.bool(a.Repetition)
			w.u16(uint16(a.Symbol))
			w.u16(a.ChildCount)
			w.i32(a.DynamicPrecedence)
			w.u16(uint16(a.Production))
		}
	}
}

func writeGotos(w *blobWriter, gotos map[Symbol]StateID) {
	syms := make([]Symbol, 0, len(gotos))
	for sym := range gotos {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	w.u32(uint32(len(syms)))
	for _, sym := range syms {
		w.u16(uint16(sym))
		w.u16(uint16(gotos[sym]))
	}
}

func writeLexStates(w *blobWriter, states []LexState) {
	w.u32(uint32(len(states)))
	for _, st := range states {
		w.bool(st.HasAccept)
		w.u16(uint16(st.AcceptSymbol))
		w.i32(st.EOFNext)
		w.u32(uint32(len(st.Transitions)))
		for _, tr := range st.Transitions {
			w.i32(int32(tr.Lo))
			w.i32(int32(tr.Hi))
			w.i32(tr.Next)
			w.bool(tr.Skip)
		}
	}
}

// Decode parses a language blob with no external scanner attached.
func Decode(blob []byte) (*Language, error) {
	return DecodeWithScanner(blob, nil)
}

// DecodeWithScanner parses a language blob and attaches the given scanner
// callbacks.
func DecodeWithScanner(blob []byte, scanner *ExternalScanner) (*Language, error) {
	if len(blob) < len(blobMagic)+4 {
		return nil, fmt.Errorf("%w: truncated header", ErrBadBlob)
	}
	for i := range blobMagic {
		if blob[i] != blobMagic[i] {
			return nil, fmt.Errorf("%w: bad magic", ErrBadBlob)
		}
	}

	r := &blobReader{buf: blob, pos: len(blobMagic)}
	var def Definition
	def.Version = r.u32()
	if err := CheckCompatible(def.Version); err != nil {
		return nil, err
	}
	def.Name = r.str()

	symbolCount := r.count(5)
	def.SymbolNames = make([]string, symbolCount)
	def.SymbolMeta = make([]SymbolMetadata, symbolCount)
	for i := range symbolCount {
		def.SymbolNames[i] = r.str()
		flags := r.u8()
		def.SymbolMeta[i] = SymbolMetadata{
			Visible:   flags&1 != 0,
			Named:     flags&2 != 0,
			Extra:     flags&4 != 0,
			Supertype: flags&8 != 0,
		}
	}

	fieldCount := r.count(4)
	def.FieldNames = make([]string, fieldCount)
	for i := range fieldCount {
		def.FieldNames[i] = r.str()
	}

	productionCount := r.count(8)
	def.Productions = make([]ProductionInfo, productionCount)
	for i := range productionCount {
		aliasCount := r.count(2)
		aliases := make([]Symbol, aliasCount)
		for j := range aliasCount {
			aliases[j] = Symbol(r.u16())
		}
		fieldEntryCount := r.count(4)
		fields := make([]FieldMapEntry, fieldEntryCount)
		for j := range fieldEntryCount {
			fields[j] = FieldMapEntry{
				Field:      FieldID(r.u16()),
				ChildIndex: r.u8(),
				Inherited:  r.bool(),
			}
		}
		def.Productions[i] = ProductionInfo{Aliases: aliases, Fields: fields}
	}

	stateCount := r.count(12)
	def.Actions = make([]map[Symbol][]ParseAction, stateCount)
	def.Gotos = make([]map[Symbol]StateID, stateCount)
	def.LexModes = make([]LexMode, stateCount)
	for state := range stateCount {
		def.Actions[state] = readSymbolActions(r)
		def.Gotos[state] = readGotos(r)
		def.LexModes[state] = LexMode{State: r.u16(), ExternalState: r.u16()}
	}

	def.LexStates = readLexStates(r)
	def.KeywordLexStates = readLexStates(r)
	def.KeywordCapture = Symbol(r.u16())

	externalCount := r.count(2)
	def.ExternalTokens = make([]Symbol, externalCount)
	for i := range externalCount {
		def.ExternalTokens[i] = Symbol(r.u16())
	}
	externalStateCount := r.count(4)
	def.ExternalScannerStates = make([][]bool, externalStateCount)
	for i := range externalStateCount {
		validCount := r.count(1)
		valid := make([]bool, validCount)
		for j := range validCount {
			valid[j] = r.bool()
		}
		def.ExternalScannerStates[i] = valid
	}

	supertypeCount := r.count(2)
	if supertypeCount > 0 {
		def.Supertypes = make([]Symbol, supertypeCount)
		for i := range supertypeCount {
			def.Supertypes[i] = Symbol(r.u16())
		}
	}
	subtypeEntryCount := r.count(6)
	if subtypeEntryCount > 0 {
		def.Subtypes = make(map[Symbol][]Symbol, subtypeEntryCount)
		for range subtypeEntryCount {
			super := Symbol(r.u16())
			memberCount := r.count(2)
			members := make([]Symbol, memberCount)
			for j := range memberCount {
				members[j] = Symbol(r.u16())
			}
			def.Subtypes[super] = members
		}
	}

	def.MaxLookaheadBytes = r.u32()
	if r.err != nil {
		return nil, r.err
	}

	def.Scanner = scanner
	lang, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("language: decoded blob invalid: %w", err)
	}
	return lang, nil
}

func readSymbolActions(r *blobReader) map[Symbol][]ParseAction {
	symCount := r.count(6)
	actions := make(map[Symbol][]ParseAction, symCount)
	for range symCount {
		sym := Symbol(r.u16())
		entryCount := r.count(14)
		entries := make([]ParseAction, entryCount)
		for i := range entryCount {
			entries[i] = ParseAction{
				Type:              ActionType(r.u8()),
				State:             StateID(r.u16()),
				Extra:             r.bool(),
				Repetition:        r.bool(),
				Symbol:            Symbol(r.u16()),
				ChildCount:        r.u16(),
				DynamicPrecedence: r.i32(),
				Production:        ProductionID(r.u16()),
			}
		}
		actions[sym] = entries
	}
	return actions
}

func readGotos(r *blobReader) map[Symbol]StateID {
	count := r.count(4)
	gotos := make(map[Symbol]StateID, count)
	for range count {
		sym := Symbol(r.u16())
		gotos[sym] = StateID(r.u16())
	}
	return gotos
}

func readLexStates(r *blobReader) []LexState {
	count := r.count(11)
	if count == 0 {
		return nil
	}
	states := make([]LexState, count)
	for i := range count {
		st := LexState{
			HasAccept:    r.bool(),
			AcceptSymbol: Symbol(r.u16()),
			EOFNext:      r.i32(),
		}
		transitionCount := r.count(13)
		st.Transitions = make([]LexTransition, transitionCount)
		for j := range transitionCount {
			st.Transitions[j] = LexTransition{
				Lo:   rune(r.i32()),
				Hi:   rune(r.i32()),
				Next: r.i32(),
				Skip: r.bool(),
			}
		}
		states[i] = st
	}
	return states
}
