package core

import "sort"

// IrMetadata carries compilation-target information alongside an IR node:
// the inferred type and session protocol (when known), per-target
// compilation hints, and linearity bookkeeping. Part of the metadata
// participates in content addressing (see encodeIrMetadataInto), so
// attaching a hint changes the node's EntityID. SessionInfo, the
// unrestricted and affine variable lists, and the hints' string lists
// (public inputs, storage slots, capabilities, exports) do not enter the id.
type IrMetadata struct {
	TypeInfo    *Type
	SessionInfo *SessionType
	TargetHints map[string]TargetHint
	Linearity   LinearityInfo
}

func NewIrMetadata() IrMetadata {
	return IrMetadata{TargetHints: map[string]TargetHint{}}
}

// LinearityInfo buckets variable names by usage discipline, populated by the
// checker (C5) or the IR builder as an aid to downstream compilation passes.
type LinearityInfo struct {
	LinearVars       []string
	UnrestrictedVars []string
	AffineVars       []string
}

// TargetHintKind tags the compilation-target hint union.
type TargetHintKind uint8

const (
	TargetHintZkCircuit TargetHintKind = iota
	TargetHintSolidity
	TargetHintCosmWasm
	TargetHintWasm
)

// TargetHint is a per-backend compilation hint: a ZK circuit's constraint
// count and public inputs, a Solidity contract's gas estimate and storage
// slots, a CosmWasm contract's gas limit and required capabilities, or a
// WASM module's memory pages and exports.
type TargetHint struct {
	Kind TargetHintKind

	ConstraintCount int
	PublicInputs    []string

	GasEstimate  uint64
	StorageSlots []string

	GasLimit             uint64
	RequiredCapabilities []string

	MemoryPages uint32
	Exports     []string
}

func ZkCircuitHint(constraintCount int, publicInputs []string) TargetHint {
	return TargetHint{Kind: TargetHintZkCircuit, ConstraintCount: constraintCount, PublicInputs: publicInputs}
}

func SolidityHint(gasEstimate uint64, storageSlots []string) TargetHint {
	return TargetHint{Kind: TargetHintSolidity, GasEstimate: gasEstimate, StorageSlots: storageSlots}
}

func CosmWasmHint(gasLimit uint64, caps []string) TargetHint {
	return TargetHint{Kind: TargetHintCosmWasm, GasLimit: gasLimit, RequiredCapabilities: caps}
}

func WasmHint(memoryPages uint32, exports []string) TargetHint {
	return TargetHint{Kind: TargetHintWasm, MemoryPages: memoryPages, Exports: exports}
}

// IrNode is a content-addressed wrapper around a Term, re-hashed whenever
// its content or metadata changes. The id covers the content and the
// hashed part of the metadata: the type's String() rendering, each hint's
// target name, kind, constraint count, gas values (low 32 bits only) and
// memory pages, and the linear variable names.
type IrNode struct {
	id       EntityID
	content  *Term
	metadata IrMetadata
}

// NewIrNode wraps content with empty metadata and computes its id.
func NewIrNode(content *Term) *IrNode {
	n := &IrNode{content: content, metadata: NewIrMetadata()}
	n.recomputeID()
	return n
}

// NewIrNodeWithMetadata wraps content with metadata, both of which
// contribute to the computed id.
func NewIrNodeWithMetadata(content *Term, metadata IrMetadata) *IrNode {
	n := &IrNode{content: content, metadata: metadata}
	n.recomputeID()
	return n
}

func (n *IrNode) ID() EntityID          { return n.id }
func (n *IrNode) Content() *Term        { return n.content }
func (n *IrNode) Metadata() IrMetadata  { return n.metadata }

// WithMetadata returns a new node carrying metadata in place of n's, with a
// recomputed id.
func (n *IrNode) WithMetadata(metadata IrMetadata) *IrNode {
	return NewIrNodeWithMetadata(n.content, metadata)
}

// WithTargetHint returns a new node with target bound to hint, added to a
// copy of n's existing hints.
func (n *IrNode) WithTargetHint(target string, hint TargetHint) *IrNode {
	hints := make(map[string]TargetHint, len(n.metadata.TargetHints)+1)
	for k, v := range n.metadata.TargetHints {
		hints[k] = v
	}
	hints[target] = hint
	meta := n.metadata
	meta.TargetHints = hints
	return NewIrNodeWithMetadata(n.content, meta)
}

func (n *IrNode) recomputeID() {
	enc := NewCanonicalEncoder()
	encodeTermInto(enc, n.content)
	encodeIrMetadataInto(enc, n.metadata)
	n.id = HashValue(enc.Bytes())
}

func encodeIrMetadataInto(enc *CanonicalEncoder, m IrMetadata) {
	if m.TypeInfo != nil {
		enc.Bool(true)
		enc.Str(m.TypeInfo.String())
	} else {
		enc.Bool(false)
	}
	names := make([]string, 0, len(m.TargetHints))
	for k := range m.TargetHints {
		names = append(names, k)
	}
	sort.Strings(names)
	enc.U32(uint32(len(names)))
	for _, name := range names {
		enc.Str(name)
		h := m.TargetHints[name]
		enc.U8(uint8(h.Kind))
		enc.U32(uint32(h.ConstraintCount))
		enc.U32(uint32(h.GasEstimate))
		enc.U32(uint32(h.GasLimit))
		enc.U32(h.MemoryPages)
	}
	enc.U32(uint32(len(m.Linearity.LinearVars)))
	for _, v := range SortedStrings(m.Linearity.LinearVars) {
		enc.Str(v)
	}
}

// encodeTermInto is a best-effort structural encoding of a Term used only
// for content addressing of IR nodes; it does not need to be invertible,
// only deterministic and injective enough in practice to distinguish
// differing terms.
func encodeTermInto(enc *CanonicalEncoder, t *Term) {
	if t == nil {
		enc.U8(0xff)
		return
	}
	enc.U8(uint8(t.Kind))
	switch t.Kind {
	case TermInt:
		enc.I64(t.IntVal)
	case TermBool:
		enc.Bool(t.BoolVal)
	case TermVar:
		enc.Str(t.Name)
	case TermLet:
		enc.Str(t.LetVar)
		encodeTermInto(enc, t.LetValue)
		encodeTermInto(enc, t.LetBody)
	case TermLambda:
		enc.U32(uint32(len(t.Params)))
		for _, p := range t.Params {
			enc.Str(p)
		}
		encodeTermInto(enc, t.LambdaBody)
	case TermApply:
		encodeTermInto(enc, t.Fn)
		enc.U32(uint32(len(t.Args)))
		for _, a := range t.Args {
			encodeTermInto(enc, a)
		}
	case TermPair, TermTensor:
		encodeTermInto(enc, t.Left)
		encodeTermInto(enc, t.Right)
	case TermProject:
		encodeTermInto(enc, t.Record)
		enc.Str(t.Label)
	case TermRecordSet:
		encodeTermInto(enc, t.Record)
		enc.Str(t.Label)
		encodeTermInto(enc, t.SetValue)
	case TermRecord:
		keys := sortedTermFieldKeys(t.Fields)
		enc.U32(uint32(len(keys)))
		for _, k := range keys {
			enc.Str(k)
			encodeTermInto(enc, t.Fields[k])
		}
	case TermInl, TermInr, TermAlloc, TermConsume:
		encodeTermInto(enc, t.Inner)
	case TermCase:
		encodeTermInto(enc, t.Scrutinee)
		enc.Str(t.InlName)
		encodeTermInto(enc, t.InlBody)
		enc.Str(t.InrName)
		encodeTermInto(enc, t.InrBody)
	case TermSend:
		encodeTermInto(enc, t.Channel)
		encodeTermInto(enc, t.SendVal)
	case TermReceive:
		encodeTermInto(enc, t.Channel)
	case TermSelect:
		encodeTermInto(enc, t.Channel)
		enc.Str(t.SelectLabel)
	case TermFork:
		encodeTermInto(enc, t.ForkBody)
	case TermLetTensor:
		encodeTermInto(enc, t.TensorExpr)
		enc.Str(t.LeftName)
		enc.Str(t.RightName)
		encodeTermInto(enc, t.TensorBody)
	}
}

// IrBuilder constructs IrNodes with a set of default target hints applied
// to every node it builds, so a compilation pass can be configured once
// ("build everything with these Solidity hints") rather than per-call.
type IrBuilder struct {
	defaultMetadata IrMetadata
}

func NewIrBuilder() *IrBuilder {
	return &IrBuilder{defaultMetadata: NewIrMetadata()}
}

// WithDefaultType returns a builder that attaches ty to every node it
// subsequently builds.
func (b *IrBuilder) WithDefaultType(ty *Type) *IrBuilder {
	meta := b.defaultMetadata
	meta.TypeInfo = ty
	return &IrBuilder{defaultMetadata: meta}
}

// WithDefaultTarget returns a builder that also attaches hint under target
// to every node it subsequently builds.
func (b *IrBuilder) WithDefaultTarget(target string, hint TargetHint) *IrBuilder {
	hints := make(map[string]TargetHint, len(b.defaultMetadata.TargetHints)+1)
	for k, v := range b.defaultMetadata.TargetHints {
		hints[k] = v
	}
	hints[target] = hint
	meta := b.defaultMetadata
	meta.TargetHints = hints
	return &IrBuilder{defaultMetadata: meta}
}

func (b *IrBuilder) BuildTerm(t *Term) *IrNode {
	return NewIrNodeWithMetadata(t, b.defaultMetadata)
}

func (b *IrBuilder) Int(n int64) *IrNode            { return b.BuildTerm(IntTerm(n)) }
func (b *IrBuilder) Bool(v bool) *IrNode             { return b.BuildTerm(BoolTerm(v)) }
func (b *IrBuilder) Var(name string) *IrNode         { return b.BuildTerm(VarTerm(name)) }

func (b *IrBuilder) Let(v string, value, body *IrNode) *IrNode {
	return b.BuildTerm(LetTerm(v, value.content, body.content))
}

func (b *IrBuilder) Record(fields map[string]*IrNode) *IrNode {
	termFields := make(map[string]*Term, len(fields))
	for k, v := range fields {
		termFields[k] = v.content
	}
	return b.BuildTerm(RecordTerm(termFields))
}

func (b *IrBuilder) Project(record *IrNode, label string) *IrNode {
	return b.BuildTerm(ProjectTerm(record.content, label))
}

func (b *IrBuilder) Pair(left, right *IrNode) *IrNode {
	return b.BuildTerm(PairTerm(left.content, right.content))
}

func (b *IrBuilder) NewSession(st *SessionType) *IrNode {
	return b.BuildTerm(NewSessionTerm(st))
}

func (b *IrBuilder) Send(channel, value *IrNode) *IrNode {
	return b.BuildTerm(SendTerm(channel.content, value.content))
}

func (b *IrBuilder) Receive(channel *IrNode) *IrNode {
	return b.BuildTerm(ReceiveTerm(channel.content))
}
