package cst

import "github.com/yaklabco/cedar/pkg/language"

// Error cost weights. Recovery minimizes the accumulated cost over
// competing heads; missing insertions are slightly more expensive than
// skipping a tree so recovery prefers consuming real input.
const (
	ErrorCostPerRecovery    = 500
	ErrorCostPerMissingTree = 110
	ErrorCostPerSkippedTree = 100
	ErrorCostPerSkippedLine = 30
	ErrorCostPerSkippedChar = 1
)

// inlineMax bounds the fields an inline leaf can pack.
const inlineMax = 255

// Pool builds subtrees. It is owned by a single parser; the subtrees it
// produces outlive it and may be shared across threads.
type Pool struct {
	// scratch recycles child slices between speculative reductions.
	scratch [][]Subtree
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// LeafData carries everything needed to construct a token subtree.
type LeafData struct {
	Symbol     language.Symbol
	ParseState language.StateID

	Padding        Length
	Size           Length
	LookaheadBytes uint32

	Visible bool
	Named   bool
	Extra   bool
	Keyword bool

	// External marks tokens produced by the external scanner; State is
	// the serialized scanner state captured after the token.
	External      bool
	ExternalState []byte

	IncludedRangeIndex uint32
}

// NewLeaf builds a token subtree, packing it inline when it fits.
func (p *Pool) NewLeaf(data LeafData) Subtree {
	fitsInline := !data.External &&
		data.Symbol != language.SymbolError &&
		data.Padding.Bytes <= inlineMax &&
		data.Padding.Extent.Row <= inlineMax &&
		data.Padding.Extent.Column <= inlineMax &&
		data.Size.Bytes <= inlineMax &&
		data.Size.Extent.Row == 0 &&
		data.LookaheadBytes <= inlineMax &&
		data.IncludedRangeIndex == 0
	if fitsInline {
		var flags subtreeFlags
		if data.Visible {
			flags |= flagVisible
		}
		if data.Named {
			flags |= flagNamed
		}
		if data.Extra {
			flags |= flagExtra
		}
		if data.Keyword {
			flags |= flagKeyword
		}
		return Subtree{inline: inlineLeaf{
			valid:          true,
			symbol:         data.Symbol,
			parseState:     data.ParseState,
			paddingBytes:   uint8(data.Padding.Bytes),
			paddingRows:    uint8(data.Padding.Extent.Row),
			paddingCols:    uint8(data.Padding.Extent.Column),
			sizeBytes:      uint8(data.Size.Bytes),
			lookaheadBytes: uint8(data.LookaheadBytes),
			flags:          flags,
		}}
	}

	d := &subtreeData{
		symbol:              data.Symbol,
		parseState:          data.ParseState,
		padding:             data.Padding,
		size:                data.Size,
		lookaheadBytes:      data.LookaheadBytes,
		firstLeafSymbol:     data.Symbol,
		firstLeafParseState: data.ParseState,
		externalState:       data.ExternalState,
		includedRangeIndex:  data.IncludedRangeIndex,
	}
	if data.Visible {
		d.flags |= flagVisible
		d.visibleDescendantCount = 1
	}
	if data.Named {
		d.flags |= flagNamed
	}
	if data.Extra {
		d.flags |= flagExtra
	}
	if data.Keyword {
		d.flags |= flagKeyword
	}
	if data.External {
		d.flags |= flagHasExternalTokens
	}
	if data.Symbol == language.SymbolError {
		d.flags |= flagVisible | flagNamed | flagFragileLeft | flagFragileRight
		d.visibleDescendantCount = 1
		d.errorCost = ErrorCostPerRecovery +
			ErrorCostPerSkippedChar*data.Size.Bytes +
			ErrorCostPerSkippedLine*data.Size.Extent.Row
	}
	d.refCount.Store(1)
	return Subtree{d: d}
}

// NewMissingLeaf builds a zero-width token inserted by error recovery.
func (p *Pool) NewMissingLeaf(lang *language.Language, sym language.Symbol, parseState language.StateID) Subtree {
	meta := lang.SymbolMetadata(sym)
	d := &subtreeData{
		symbol:              sym,
		parseState:          parseState,
		errorCost:           ErrorCostPerMissingTree + ErrorCostPerRecovery,
		firstLeafSymbol:     sym,
		firstLeafParseState: parseState,
		flags:               flagMissing | flagFragileLeft | flagFragileRight,
	}
	if meta.Visible {
		d.flags |= flagVisible
		d.visibleDescendantCount = 1
	}
	if meta.Named {
		d.flags |= flagNamed
	}
	d.refCount.Store(1)
	return Subtree{d: d}
}

// NodeOptions tune node construction.
type NodeOptions struct {
	// DynamicPrecedence is the producing action's precedence, added to
	// the children's accumulated value.
	DynamicPrecedence int32

	// Fragile marks both edges; set for nodes produced under ambiguity
	// or during recovery.
	Fragile bool
}

// NewNode builds an internal node, computing every aggregate from the
// child slice. The slice is owned by the new node.
func (p *Pool) NewNode(
	lang *language.Language,
	sym language.Symbol,
	children []Subtree,
	production language.ProductionID,
	opts NodeOptions,
) Subtree {
	d := &subtreeData{
		symbol:     sym,
		production: production,
		children:   children,
	}
	d.refCount.Store(1)

	if sym == language.SymbolError {
		d.flags |= flagVisible | flagNamed | flagFragileLeft | flagFragileRight
	} else {
		meta := lang.SymbolMetadata(sym)
		if meta.Visible {
			d.flags |= flagVisible
		}
		if meta.Named {
			d.flags |= flagNamed
		}
		if meta.Extra {
			d.flags |= flagExtra
		}
	}
	if opts.Fragile {
		d.flags |= flagFragileLeft | flagFragileRight
	}

	aliases := lang.AliasSequence(production)
	d.dynamicPrecedence = opts.DynamicPrecedence

	structuralIndex := 0
	for i, child := range children {
		if i == 0 {
			d.padding = child.Padding()
			d.size = child.Size()
		} else {
			d.size = d.size.Add(child.TotalLength())
		}

		d.errorCost += child.ErrorCost()
		d.dynamicPrecedence += child.DynamicPrecedence()

		if child.HasChanges() {
			d.flags |= flagHasChanges
		}
		if child.HasExternalTokens() {
			d.flags |= flagHasExternalTokens
		}
		if i == 0 && child.FragileLeft() {
			d.flags |= flagFragileLeft
		}
		if i == len(children)-1 && child.FragileRight() {
			d.flags |= flagFragileRight
		}

		// Extras are not counted in production lengths and carry no
		// alias.
		var alias language.Symbol
		if !child.Extra() {
			if structuralIndex < len(aliases) {
				alias = aliases[structuralIndex]
			}
			structuralIndex++
		}

		visible := child.Visible() || alias != 0
		if visible {
			d.visibleChildCount++
			named := child.Named()
			if alias != 0 {
				named = lang.SymbolMetadata(alias).Named
			}
			if named {
				d.namedChildCount++
			}
		}

		descendants := child.VisibleDescendantCount()
		if alias != 0 && !child.Visible() {
			descendants++
		}
		d.visibleDescendantCount += descendants
	}

	// Lookahead windows of interior children may extend past the node
	// end; the node's window is the furthest overhang.
	total := d.padding.Add(d.size).Bytes
	var runningEnd uint32
	for _, child := range children {
		runningEnd += child.TotalLength().Bytes
		window := runningEnd + child.LookaheadBytes()
		if window > total && window-total > d.lookaheadBytes {
			d.lookaheadBytes = window - total
		}
	}

	if d.flags&flagVisible != 0 {
		d.visibleDescendantCount++
	}

	if sym == language.SymbolError {
		size := d.size
		skippedTrees := uint32(0)
		for _, child := range children {
			if child.Visible() {
				skippedTrees++
			}
		}
		d.errorCost += ErrorCostPerRecovery +
			ErrorCostPerSkippedChar*size.Bytes +
			ErrorCostPerSkippedLine*size.Extent.Row +
			ErrorCostPerSkippedTree*skippedTrees
	}

	if len(children) > 0 {
		first := children[0]
		d.firstLeafSymbol = first.FirstLeafSymbol()
		d.firstLeafParseState = first.FirstLeafParseState()
	} else {
		d.firstLeafSymbol = sym
	}

	return Subtree{d: d}
}

// NewErrorNode wraps skipped content into an ERROR node.
func (p *Pool) NewErrorNode(lang *language.Language, children []Subtree) Subtree {
	return p.NewNode(lang, language.SymbolError, children, 0, NodeOptions{})
}

// BorrowSlice hands out a recycled child slice.
func (p *Pool) BorrowSlice(capacity int) []Subtree {
	if n := len(p.scratch); n > 0 {
		s := p.scratch[n-1]
		p.scratch = p.scratch[:n-1]
		if cap(s) >= capacity {
			return s[:0]
		}
	}
	return make([]Subtree, 0, capacity)
}

// ReturnSlice recycles a child slice that did not end up owned by a node.
func (p *Pool) ReturnSlice(s []Subtree) {
	if cap(s) > 0 && len(p.scratch) < 32 {
		p.scratch = append(p.scratch, s[:0])
	}
}
