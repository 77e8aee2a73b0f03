package moneyexpr

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// DirectiveKind is the kind of a word in the directive region of a query.
type DirectiveKind int8

const (
	// DirectiveBase is a word with no sigil. It names the base currency.
	DirectiveBase DirectiveKind = iota
	// DirectiveAdd is a word starting with +. It adds a target currency.
	DirectiveAdd
	// DirectiveRemove is a word starting with -. It removes a target currency.
	DirectiveRemove
	// DirectiveExtra is a word starting with ! or &. It adds a target
	// currency like DirectiveAdd.
	DirectiveExtra
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveBase:
		return "Base"
	case DirectiveAdd:
		return "Add"
	case DirectiveRemove:
		return "Remove"
	case DirectiveExtra:
		return "Extra"
	default:
		return "DirectiveKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// sigils are the runes that start directive words.
const sigils = "+-!&"

// Directive is a word of the directive region.
type Directive struct {
	Kind DirectiveKind
	// Word is the word as typed, including its sigil.
	Word string
	// Text is the word without its sigil.
	Text string
	// Pos is the 1-based rune position of the word in the query.
	Pos int
}

// Tag is a currency named inside the value region.
type Tag struct {
	// Code is the canonical code of the currency.
	Code string
	// Text is the word as typed.
	Text string
	// Pos is the 1-based rune position of the word in the query.
	Pos int
	// Off is the length of the normalized expression when the word was seen.
	Off int
	// Prefix is whether the word precedes the operand it tags, as in USD(2+7),
	// rather than following it, as in (2+7)USD.
	Prefix bool
}

// Normalized is a query split into a normalized arithmetic expression and
// currency directives.
type Normalized struct {
	// Query is the raw query.
	Query string
	// Expression is the arithmetic expression with whitespace removed,
	// decimal commas converted, magnitudes applied, and negative operands
	// after operators parenthesized.
	Expression string
	// Tags are the currencies named inside the value region in order.
	Tags []Tag
	// Directives are the words after the value region.
	Directives []Directive
	// Start is the 1-based position of the first character of the value
	// region.
	Start int

	// posmap maps rune offsets in Expression to 1-based query positions.
	posmap []int
	// end is the query position of the end of the value region.
	end int
}

// RawPos maps a rune offset into the normalized expression to a 1-based rune
// position in the raw query.
func (n *Normalized) RawPos(off int) int {
	if 0 <= off && off < len(n.posmap) {
		return n.posmap[off]
	}
	return n.end
}

// Normalizer rewrites raw queries into normalized expressions. It is
// immutable after creation and safe for concurrent use.
type Normalizer struct {
	res  *Resolver
	mags map[string]int32
	// maxmag is the length in runes of the longest magnitude suffix.
	maxmag int
	msgs   Messages
}

// NewNormalizer creates a normalizer. magnitudes maps suffixes like k to
// powers of ten.
func NewNormalizer(res *Resolver, magnitudes map[string]int32, msgs Messages) *Normalizer {
	z := Normalizer{res: res, mags: make(map[string]int32, len(magnitudes)), msgs: msgs}
	for k, v := range magnitudes {
		f := fold(k)
		if f == "" {
			continue
		}
		z.mags[f] = v
		z.maxmag = max(z.maxmag, len([]rune(f)))
	}
	return &z
}

// item is the kind of the last thing written to a normalized expression.
type item int8

const (
	itemNone item = iota
	itemNum
	itemOp
	itemOpen
	itemClose
)

// normstate holds the state of one normalization.
type normstate struct {
	z     *Normalizer
	query string
	r     []rune
	// vend is the index of the first rune of the directive region.
	vend int

	out    []rune
	posmap []int
	tags   []Tag

	// last and prev are the last two items written. lastOp and prevOp are
	// their runes if they are operators.
	last, prev     item
	lastOp, prevOp rune
	// lastTag is whether the last thing seen was a currency word.
	lastTag bool
	// pend is a number waiting for magnitude suffixes.
	pend *pending
}

type pending struct {
	val decimal.Decimal
	pos int
}

// Normalize splits a query into its value and directive regions and
// normalizes the value region. Failures are *InputError.
//
// Normalizing an expression produced by Normalize gives it back unchanged,
// provided it parses. Adjacent operands are written with a space between them
// for the parser to reject, and normalizing them again joins their digits.
func (z *Normalizer) Normalize(query string) (*Normalized, error) {
	s := normstate{z: z, query: query, r: []rune(query)}
	s.vend = directiveStart(s.r)
	if err := s.value(); err != nil {
		return nil, err
	}
	n := Normalized{
		Query:      query,
		Tags:       s.tags,
		Directives: directives(s.r[s.vend:], s.vend),
		Start:      1,
		end:        1,
	}
	for i := 0; i < s.vend; i++ {
		if !unicode.IsSpace(s.r[i]) {
			n.Start = i + 1
			break
		}
	}
	for i := s.vend - 1; i >= 0; i-- {
		if !unicode.IsSpace(s.r[i]) {
			n.end = i + 2
			break
		}
	}
	if len(s.out) == 0 {
		if len(s.tags) == 0 {
			return nil, z.msgs.inputError(query, n.Start, EmptyExpression, "", nil)
		}
		// Only currency words. The amount is one of them.
		s.write('1', s.tags[0].Pos)
	}
	n.Expression = string(s.out)
	n.posmap = s.posmap
	return &n, nil
}

// directiveStart finds the start of the directive region: the first sigil
// preceded by whitespace and followed by a word.
func directiveStart(r []rune) int {
	for i := 1; i+1 < len(r); i++ {
		if strings.ContainsRune(sigils, r[i]) && unicode.IsSpace(r[i-1]) && wordStart(r, i+1, len(r)) {
			return i
		}
	}
	return len(r)
}

// directives splits the directive region into words. off is the index of
// the region in the query.
func directives(r []rune, off int) []Directive {
	var d []Directive
	for i := 0; i < len(r); {
		if unicode.IsSpace(r[i]) {
			i++
			continue
		}
		j := i
		for j < len(r) && !unicode.IsSpace(r[j]) {
			j++
		}
		w := Directive{Word: string(r[i:j]), Text: string(r[i:j]), Pos: off + i + 1}
		if j-i > 1 {
			switch r[i] {
			case '+':
				w.Kind = DirectiveAdd
			case '-':
				w.Kind = DirectiveRemove
			case '!', '&':
				w.Kind = DirectiveExtra
			}
			if w.Kind != DirectiveBase {
				w.Text = string(r[i+1 : j])
			}
		}
		d = append(d, w)
		i = j
	}
	return d
}

func isDigit(c rune) bool {
	return '0' <= c && c <= '9'
}

func isSep(c rune) bool {
	return c == '.' || c == ','
}

// isWordRune reports whether c can be part of a word: anything but
// whitespace, digits, operators, and parentheses.
func isWordRune(c rune) bool {
	return !unicode.IsSpace(c) && !isDigit(c) && c != '(' && c != ')' && !strings.ContainsRune(Operators, c)
}

// wordStart reports whether a word starts at r[i]. A separator followed by a
// digit starts a number instead.
func wordStart(r []rune, i, end int) bool {
	if !isWordRune(r[i]) {
		return false
	}
	return !isSep(r[i]) || i+1 >= end || !isDigit(r[i+1])
}

// value normalizes the value region.
func (s *normstate) value() error {
	for i := 0; i < s.vend; {
		c := s.r[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case isDigit(c), isSep(c) && !wordStart(s.r, i, s.vend):
			i = s.number(i)
		case c == '(':
			s.flush()
			s.write(c, i+1)
			s.push(itemOpen, c)
			i++
		case c == ')':
			s.flush()
			s.write(c, i+1)
			s.push(itemClose, c)
			i++
		case strings.ContainsRune(Operators, c):
			s.flush()
			if (c == '+' || c == '-') && s.dangling(i) {
				i++
				continue
			}
			s.write(c, i+1)
			s.push(itemOp, c)
			i++
		default:
			j := i + 1
			for j < s.vend && wordStart(s.r, j, s.vend) {
				j++
			}
			if err := s.word(i, j); err != nil {
				return err
			}
			i = j
		}
	}
	s.flush()
	return nil
}

// dangling reports whether the sign at r[i] follows whitespace and ends the
// value region.
func (s *normstate) dangling(i int) bool {
	if i == 0 || !unicode.IsSpace(s.r[i-1]) {
		return false
	}
	for _, c := range s.r[i+1 : s.vend] {
		if !unicode.IsSpace(c) {
			return false
		}
	}
	return true
}

// number scans a number starting at r[i] and makes it pending. Digit groups
// separated by whitespace join before the decimal separator. The result is
// the index after the number.
func (s *normstate) number(i int) int {
	s.flush()
	var b strings.Builder
	sep := false
	j := i
scan:
	for j < s.vend {
		c := s.r[j]
		switch {
		case isDigit(c):
			b.WriteRune(c)
			j++
		case isSep(c) && !sep:
			sep = true
			if j+1 < s.vend && isDigit(s.r[j+1]) {
				b.WriteByte('.')
				j++
				continue
			}
			if j+1 == s.vend || !isWordRune(s.r[j+1]) {
				// Trailing separator, as in "5. USD".
				j++
			}
			break scan
		case unicode.IsSpace(c) && !sep:
			k := j
			for k < s.vend && unicode.IsSpace(s.r[k]) {
				k++
			}
			if k == s.vend || !isDigit(s.r[k]) {
				break scan
			}
			j = k
		default:
			break scan
		}
	}
	t := b.String()
	if strings.HasPrefix(t, ".") {
		t = "0" + t
	}
	v, err := decimal.NewFromString(t)
	if err != nil {
		panic("moneyexpr: scanned invalid number " + strconv.Quote(t) + ": " + err.Error())
	}
	s.pend = &pending{val: v, pos: i + 1}
	s.lastTag = false
	return j
}

// word resolves the word r[i:j] as a currency, a magnitude suffix of the
// pending number, or both.
func (s *normstate) word(i, j int) error {
	w := string(s.r[i:j])
	pos := i + 1
	if code, ok := s.z.res.Resolve(w); ok {
		return s.tag(code, w, pos)
	}
	if s.pend != nil && !s.lastTag {
		f := []rune(fold(w))
		if e, ok := s.z.magnitude(f); ok {
			s.pend.val = s.pend.val.Shift(e)
			return nil
		}
		for l := 1; l < len(f); l++ {
			e, ok := s.z.magnitude(f[:l])
			if !ok {
				continue
			}
			if code, ok := s.z.res.Resolve(string(f[l:])); ok {
				s.pend.val = s.pend.val.Shift(e)
				return s.tag(code, w, pos)
			}
		}
	}
	return s.z.msgs.inputError(s.query, pos, InvalidToken, w, nil)
}

// tag records a currency word.
func (s *normstate) tag(code, w string, pos int) error {
	if s.lastTag {
		return s.z.msgs.inputError(s.query, pos, InvalidValueProvided, w, nil)
	}
	s.flush()
	s.tags = append(s.tags, Tag{
		Code:   code,
		Text:   w,
		Pos:    pos,
		Off:    len(s.out),
		Prefix: s.last != itemNum && s.last != itemClose,
	})
	s.lastTag = true
	return nil
}

// flush writes the pending number. A minus sign at the start or after
// another operator becomes part of a parenthesized negative literal.
func (s *normstate) flush() {
	if s.pend == nil {
		return
	}
	p := s.pend
	s.pend = nil
	text := p.val.String()
	if s.last == itemOp && s.lastOp == '-' && (s.prev == itemNone || s.prev == itemOp && strings.ContainsRune("+-*^", s.prevOp)) {
		m := s.posmap[len(s.posmap)-1]
		s.out = s.out[:len(s.out)-1]
		s.posmap = s.posmap[:len(s.posmap)-1]
		s.write('(', m)
		s.write('-', m)
		for _, c := range text {
			s.write(c, p.pos)
		}
		s.write(')', m)
		s.last, s.lastOp = itemClose, ')'
		return
	}
	if s.last == itemNum {
		s.write(' ', p.pos)
	}
	for _, c := range text {
		s.write(c, p.pos)
	}
	s.push(itemNum, 0)
}

func (s *normstate) write(c rune, pos int) {
	s.out = append(s.out, c)
	s.posmap = append(s.posmap, pos)
}

func (s *normstate) push(it item, op rune) {
	s.prev, s.prevOp = s.last, s.lastOp
	s.last, s.lastOp = it, op
	s.lastTag = false
}

// magnitude gets the total power of ten of a word made only of magnitude
// suffixes, matching the longest suffix first.
func (z *Normalizer) magnitude(f []rune) (int32, bool) {
	if len(f) == 0 || z.maxmag == 0 {
		return 0, false
	}
	var e int32
	for i := 0; i < len(f); {
		n := 0
		for l := min(z.maxmag, len(f)-i); l > 0; l-- {
			if m, ok := z.mags[string(f[i:i+l])]; ok {
				e += m
				n = l
				break
			}
		}
		if n == 0 {
			return 0, false
		}
		i += n
	}
	return e, true
}
