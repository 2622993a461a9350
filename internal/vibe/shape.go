package vibe

import "github.com/nous-labs/murmur/internal/chance"

// ShapeKind names the length class of a reply.
type ShapeKind string

const (
	SingleWord ShapeKind = "single_word"
	Long       ShapeKind = "long"
	Short      ShapeKind = "short"
)

// Shape is the length class of a reply with its token cap and the
// instruction handed to the model.
type Shape struct {
	Kind        ShapeKind
	MaxTokens   int
	Instruction string
}

var (
	shapeSingleWord = Shape{Kind: SingleWord, MaxTokens: 10, Instruction: "one word only"}
	shapeLong       = Shape{Kind: Long, MaxTokens: 100, Instruction: "2-4 sentences"}
	shapeShort      = Shape{Kind: Short, MaxTokens: 30, Instruction: "one sentence"}
)

// PickShape draws one value r: r < 0.2 gives a single word, r < 0.467 a long
// reply, anything else a short one.
func PickShape(src chance.Source) Shape {
	r := src.Float64()
	switch {
	case r < 0.2:
		return shapeSingleWord
	case r < 0.467:
		return shapeLong
	default:
		return shapeShort
	}
}
