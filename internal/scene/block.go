package scene

import "github.com/coreman2200/funtimes-pgp/internal/pgp"

// Block is one element of a static section. The set of kinds is closed.
type Block interface {
	Kind() string
	block()
}

type (
	// Text prints a string at (X, Y). Size is the requested height in dots;
	// Font, when set, selects a legacy font index 0..3 instead.
	Text struct {
		X, Y int
		Size int
		Font *int
		Text string
	}
	Rect struct {
		X, Y, W, H int
		Filled     bool
	}
	// Fill repeats one byte pattern across Lines full lines.
	Fill struct {
		Value byte
		Lines int
	}
	// Raster is pre-rendered rows, each at most one line wide.
	Raster struct {
		Rows [][]byte
	}
	SpriteDraw struct {
		ID   int
		X, Y int
	}
	Feed       struct{ Lines int }
	SetSpeed   struct{ Speed int }
	SetHeat    struct{ Heat int }
	PollInput  struct{}
	WaitButton struct{ Button int }
	SyncMarker struct{ Marker int }
)

// Control-flow blocks. Any of these makes the whole program branching.
type (
	Label        struct{ ID int }
	Jump         struct{ Label int }
	JumpIfButton struct{ Button, Label int }
	RandomJump   struct{ Labels []int }
	SetVariable  struct{ Var, Value int }

	JumpIfVariable struct {
		Var   int
		Op    pgp.Op
		Value int
		Label int
	}
	JumpIfFader struct {
		Fader     int
		Op        pgp.Op
		Threshold int
		Label     int
	}
	WaitFader struct {
		Fader     int
		Op        pgp.Op
		Threshold int
	}

	SetFeedMode struct{ Mode pgp.FeedMode }
)

func (Text) Kind() string           { return "text" }
func (Rect) Kind() string           { return "rect" }
func (Fill) Kind() string           { return "fill" }
func (Raster) Kind() string         { return "raster" }
func (SpriteDraw) Kind() string     { return "sprite" }
func (Feed) Kind() string           { return "feed" }
func (SetSpeed) Kind() string       { return "speed" }
func (SetHeat) Kind() string        { return "heat" }
func (PollInput) Kind() string      { return "poll_input" }
func (WaitButton) Kind() string     { return "wait_button" }
func (SyncMarker) Kind() string     { return "sync" }
func (Label) Kind() string          { return "label" }
func (Jump) Kind() string           { return "jump" }
func (JumpIfButton) Kind() string   { return "jump_if_button" }
func (RandomJump) Kind() string     { return "random_jump" }
func (SetVariable) Kind() string    { return "set_variable" }
func (JumpIfVariable) Kind() string { return "jump_if_variable" }
func (JumpIfFader) Kind() string    { return "jump_if_fader" }
func (WaitFader) Kind() string      { return "wait_fader" }
func (SetFeedMode) Kind() string    { return "feed_mode" }

func (Text) block()           {}
func (Rect) block()           {}
func (Fill) block()           {}
func (Raster) block()         {}
func (SpriteDraw) block()     {}
func (Feed) block()           {}
func (SetSpeed) block()       {}
func (SetHeat) block()        {}
func (PollInput) block()      {}
func (WaitButton) block()     {}
func (SyncMarker) block()     {}
func (Label) block()          {}
func (Jump) block()           {}
func (JumpIfButton) block()   {}
func (RandomJump) block()     {}
func (SetVariable) block()    {}
func (JumpIfVariable) block() {}
func (JumpIfFader) block()    {}
func (WaitFader) block()      {}
func (SetFeedMode) block()    {}

// IsControl reports whether b is a control-flow block.
func IsControl(b Block) bool {
	switch b.(type) {
	case Label, Jump, JumpIfButton, RandomJump, SetVariable,
		JumpIfVariable, JumpIfFader, WaitFader, SetFeedMode:
		return true
	}
	return false
}

// LabelRefs returns the label ids b jumps to.
func LabelRefs(b Block) []int {
	switch v := b.(type) {
	case Jump:
		return []int{v.Label}
	case JumpIfButton:
		return []int{v.Label}
	case RandomJump:
		return v.Labels
	case JumpIfVariable:
		return []int{v.Label}
	case JumpIfFader:
		return []int{v.Label}
	}
	return nil
}
