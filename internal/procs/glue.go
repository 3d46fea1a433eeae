package procs

import (
	charmlog "github.com/charmbracelet/log"

	"github.com/larkecw/sfengine/internal/engerr"
	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/procs/wavebank"
	"github.com/larkecw/sfengine/internal/value"
)

// Timer emits a bool pulse every PeriodCycles cycles (spec.md §4.6
// "timer", configuration/flow glue — no audio timing impact).
type Timer struct {
	PeriodCycles int
}

type timerState struct {
	outVar *proc.Variable
	count  int
}

func (t *Timer) Create(p *proc.Proc) error {
	p.State = &timerState{outVar: must(p, "out", 0, 0, numDesc(value.FlagBool), false)}
	return nil
}
func (t *Timer) Destroy(p *proc.Proc) error                  { return nil }
func (t *Timer) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (t *Timer) Report(p *proc.Proc) error                   { return nil }

func (t *Timer) Exec(p *proc.Proc) error {
	st := p.State.(*timerState)
	st.count++
	fire := st.count >= t.PeriodCycles
	if fire {
		st.count = 0
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ScalarValue(value.Bool(fire)))
}

// Counter increments on every true "tick" input, resets on "reset".
type Counter struct{}

type counterState struct {
	tickVar, resetVar, outVar *proc.Variable
	n                         int64
}

func (c *Counter) Create(p *proc.Proc) error {
	st := &counterState{}
	st.tickVar = must(p, "tick", 0, 0, numDesc(value.FlagBool), true)
	st.resetVar = must(p, "reset", 0, 0, numDesc(value.FlagBool), true)
	st.outVar = must(p, "out", 0, 0, numDesc(value.FlagInt64), false)
	p.State = st
	return nil
}
func (c *Counter) Destroy(p *proc.Proc) error                  { return nil }
func (c *Counter) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (c *Counter) Report(p *proc.Proc) error                   { return nil }

func (c *Counter) Exec(p *proc.Proc) error {
	st := p.State.(*counterState)
	if val, err := p.VarGet(st.resetVar, proc.AnyChannel); err == nil {
		if r, _ := val.Scalar.Bool(); r {
			st.n = 0
		}
	}
	if val, err := p.VarGet(st.tickVar, proc.AnyChannel); err == nil {
		if t, _ := val.Scalar.Bool(); t {
			st.n++
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ScalarValue(value.Int64(st.n)))
}

// Number is a pass-through numeric register with a declared default
// (spec.md §4.6 "number").
type Number struct {
	Default value.Value
}

type numberState struct {
	inVar, outVar *proc.Variable
}

func (n *Number) Create(p *proc.Proc) error {
	st := &numberState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	if err := p.VarSet(st.outVar, proc.AnyChannel, proc.ScalarValue(n.Default)); err != nil {
		return err
	}
	p.State = st
	return nil
}
func (n *Number) Destroy(p *proc.Proc) error { return nil }

func (n *Number) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*numberState)
	if v != st.inVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	return p.VarSet(st.outVar, proc.AnyChannel, val)
}
func (n *Number) Report(p *proc.Proc) error { return nil }
func (n *Number) Exec(p *proc.Proc) error   { return nil }

// Register holds an explicit value set by notify and re-exposes it as an
// output (spec.md §4.6 "register").
type Register struct{}

type registerState struct {
	inVar, outVar *proc.Variable
}

func (r *Register) Create(p *proc.Proc) error {
	st := &registerState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (r *Register) Destroy(p *proc.Proc) error { return nil }

func (r *Register) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*registerState)
	if v != st.inVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	return p.VarSet(st.outVar, proc.AnyChannel, val)
}
func (r *Register) Report(p *proc.Proc) error { return nil }
func (r *Register) Exec(p *proc.Proc) error   { return nil }

// Add sums any number of numeric inputs every cycle (spec.md §4.6
// "add").
type Add struct {
	InputN int
}

type addState struct {
	inVars []*proc.Variable
	outVar *proc.Variable
}

func (a *Add) Create(p *proc.Proc) error {
	st := &addState{}
	for i := 0; i < a.InputN; i++ {
		st.inVars = append(st.inVars, must(p, "in", i, 0, numDesc(value.FlagDouble), true))
	}
	st.outVar = must(p, "out", 0, 0, numDesc(value.FlagDouble), false)
	p.State = st
	return nil
}
func (a *Add) Destroy(p *proc.Proc) error                  { return nil }
func (a *Add) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *Add) Report(p *proc.Proc) error                   { return nil }

func (a *Add) Exec(p *proc.Proc) error {
	st := p.State.(*addState)
	sum := 0.0
	for _, iv := range st.inVars {
		if val, err := p.VarGet(iv, proc.AnyChannel); err == nil {
			f, _ := val.Scalar.Float64()
			sum += f
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ScalarValue(value.Double(sum)))
}

// List cycles through a fixed list of values, advancing on every true
// "next" input (spec.md §4.6 "list").
type List struct {
	Values []value.Value
}

type listState struct {
	nextVar, outVar *proc.Variable
	idx             int
}

func (l *List) Create(p *proc.Proc) error {
	st := &listState{}
	st.nextVar = must(p, "next", 0, 0, numDesc(value.FlagBool), true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	if len(l.Values) > 0 {
		if err := p.VarSet(st.outVar, proc.AnyChannel, proc.ScalarValue(l.Values[0])); err != nil {
			return err
		}
	}
	p.State = st
	return nil
}
func (l *List) Destroy(p *proc.Proc) error { return nil }

func (l *List) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*listState)
	if v != st.nextVar || len(l.Values) == 0 {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	if on, _ := val.Scalar.Bool(); on {
		st.idx = (st.idx + 1) % len(l.Values)
		return p.VarSet(st.outVar, proc.AnyChannel, proc.ScalarValue(l.Values[st.idx]))
	}
	return nil
}
func (l *List) Report(p *proc.Proc) error { return nil }
func (l *List) Exec(p *proc.Proc) error   { return nil }

// LabelValueList exposes a fixed label->value table looked up by an
// integer index input (spec.md §4.6 "label_value_list").
type LabelValueList struct {
	Labels []string
	Values []value.Value
}

type labelValueListState struct {
	idxVar, labelVar, valueVar *proc.Variable
}

func (lv *LabelValueList) Create(p *proc.Proc) error {
	st := &labelValueListState{}
	st.idxVar = must(p, "index", 0, 0, numDesc(value.FlagInt32), true)
	st.labelVar = must(p, "label", 0, 0, numDesc(value.FlagString), false)
	st.valueVar = must(p, "value", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (lv *LabelValueList) Destroy(p *proc.Proc) error { return nil }

func (lv *LabelValueList) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*labelValueListState)
	if v != st.idxVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	n, _ := val.Scalar.Int64()
	if n < 0 || int(n) >= len(lv.Labels) {
		return nil
	}
	if err := p.VarSet(st.labelVar, proc.AnyChannel, proc.ScalarValue(value.String(lv.Labels[n]))); err != nil {
		return err
	}
	return p.VarSet(st.valueVar, proc.AnyChannel, proc.ScalarValue(lv.Values[n]))
}
func (lv *LabelValueList) Report(p *proc.Proc) error { return nil }
func (lv *LabelValueList) Exec(p *proc.Proc) error   { return nil }

// StringList is LabelValueList's string-only sibling: an index input
// selects one of a fixed string list (spec.md §4.6 "string_list").
type StringList struct {
	Values []string
}

type stringListState struct {
	idxVar, outVar *proc.Variable
}

func (s *StringList) Create(p *proc.Proc) error {
	st := &stringListState{}
	st.idxVar = must(p, "index", 0, 0, numDesc(value.FlagInt32), true)
	st.outVar = must(p, "out", 0, 0, numDesc(value.FlagString), false)
	p.State = st
	return nil
}
func (s *StringList) Destroy(p *proc.Proc) error { return nil }

func (s *StringList) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*stringListState)
	if v != st.idxVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	n, _ := val.Scalar.Int64()
	if n < 0 || int(n) >= len(s.Values) {
		return nil
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ScalarValue(value.String(s.Values[n])))
}
func (s *StringList) Report(p *proc.Proc) error { return nil }
func (s *StringList) Exec(p *proc.Proc) error   { return nil }

// GutimTakeMenu exposes one wavebank menu as an index-selectable take:
// a "select" integer input picks a Take by position and republishes its
// sfx_id and label (spec.md §4.6 "gutim_take_menu"; menu storage is
// internal/procs/wavebank, grounded on cwGutimReg.cpp's label-keyed
// wave-table/take registry).
type GutimTakeMenu struct {
	Bank *wavebank.Bank
	Menu string
}

type gutimTakeMenuState struct {
	selectVar, sfxIDVar, labelVar *proc.Variable
}

func (g *GutimTakeMenu) Create(p *proc.Proc) error {
	st := &gutimTakeMenuState{}
	st.selectVar = must(p, "select", 0, 0, numDesc(value.FlagInt32), true)
	st.sfxIDVar = must(p, "sfx_id", 0, 0, numDesc(value.FlagInt32), false)
	st.labelVar = must(p, "label", 0, 0, numDesc(value.FlagString), false)
	p.State = st
	return nil
}
func (g *GutimTakeMenu) Destroy(p *proc.Proc) error { return nil }

func (g *GutimTakeMenu) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*gutimTakeMenuState)
	if v != st.selectVar || g.Bank == nil {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	idx, _ := val.Scalar.Int64()
	take, err := g.Bank.TakeAt(g.Menu, int(idx))
	if err != nil {
		return nil
	}
	if err := p.VarSet(st.sfxIDVar, proc.AnyChannel, proc.ScalarValue(value.Int32(int32(take.SfxID)))); err != nil {
		return err
	}
	return p.VarSet(st.labelVar, proc.AnyChannel, proc.ScalarValue(value.String(take.Label)))
}
func (g *GutimTakeMenu) Report(p *proc.Proc) error { return nil }
func (g *GutimTakeMenu) Exec(p *proc.Proc) error   { return nil }

// GutimPsMsgTable looks a take up by label rather than index, mirroring
// the "take" preset-select messages cwGutimReg.cpp dispatched off a
// parameter-set label table (spec.md §4.6 "gutim_ps_msg_table").
type GutimPsMsgTable struct {
	Bank *wavebank.Bank
	Menu string
}

type gutimPsMsgTableState struct {
	labelInVar, sfxIDVar, foundVar *proc.Variable
}

func (g *GutimPsMsgTable) Create(p *proc.Proc) error {
	st := &gutimPsMsgTableState{}
	st.labelInVar = must(p, "label", 0, 0, numDesc(value.FlagString), true)
	st.sfxIDVar = must(p, "sfx_id", 0, 0, numDesc(value.FlagInt32), false)
	st.foundVar = must(p, "found", 0, 0, numDesc(value.FlagBool), false)
	p.State = st
	return nil
}
func (g *GutimPsMsgTable) Destroy(p *proc.Proc) error { return nil }

func (g *GutimPsMsgTable) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*gutimPsMsgTableState)
	if v != st.labelInVar || g.Bank == nil {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	label, err := val.Scalar.String()
	if err != nil {
		return nil
	}
	take, _, err := g.Bank.TakeByLabel(g.Menu, label)
	if err != nil {
		return p.VarSet(st.foundVar, proc.AnyChannel, proc.ScalarValue(value.Bool(false)))
	}
	if err := p.VarSet(st.sfxIDVar, proc.AnyChannel, proc.ScalarValue(value.Int32(int32(take.SfxID)))); err != nil {
		return err
	}
	return p.VarSet(st.foundVar, proc.AnyChannel, proc.ScalarValue(value.Bool(true)))
}
func (g *GutimPsMsgTable) Report(p *proc.Proc) error { return nil }
func (g *GutimPsMsgTable) Exec(p *proc.Proc) error   { return nil }

// Preset applies one of a fixed set of named value-snapshots to a list
// of target variables on notify, the glue counterpart of Network's
// ApplyPreset (spec.md §4.6 "preset").
type Preset struct {
	Names   []string
	Targets []*proc.Variable // one per entry in a given preset's Values
	Values  map[string][]value.Value
}

type presetState struct {
	selectVar, appliedVar *proc.Variable
}

func (ps *Preset) Create(p *proc.Proc) error {
	st := &presetState{}
	st.selectVar = must(p, "select", 0, 0, numDesc(value.FlagString), true)
	st.appliedVar = must(p, "applied", 0, 0, numDesc(value.FlagString), false)
	p.State = st
	return nil
}
func (ps *Preset) Destroy(p *proc.Proc) error { return nil }

func (ps *Preset) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*presetState)
	if v != st.selectVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	name, err := val.Scalar.String()
	if err != nil {
		return nil
	}
	vals, ok := ps.Values[name]
	if !ok {
		return engerr.New(engerr.NotFound, "preset: no preset named %q", name)
	}
	for i, tv := range vals {
		if i >= len(ps.Targets) || ps.Targets[i] == nil {
			continue
		}
		tgt := ps.Targets[i]
		if err := tgt.Owner.VarSet(tgt, proc.AnyChannel, proc.ScalarValue(tv)); err != nil {
			return err
		}
	}
	return p.VarSet(st.appliedVar, proc.AnyChannel, proc.ScalarValue(value.String(name)))
}
func (ps *Preset) Report(p *proc.Proc) error { return nil }
func (ps *Preset) Exec(p *proc.Proc) error   { return nil }

// ScorePlayerCtl drives score-synchronized playback transport: play /
// pause / seek-to-location inputs gate a running bool and republish the
// current score location index every cycle (spec.md §4.6
// "score_player_ctl"). It does not itself consult internal/score or
// internal/track — those feed it a location index over the loc input —
// so it stays a thin transport-state glue proc.
type ScorePlayerCtl struct{}

type scorePlayerCtlState struct {
	playVar, pauseVar, seekLocVar, locVar, locOutVar, runningVar *proc.Variable
	running                                                      bool
}

func (sc *ScorePlayerCtl) Create(p *proc.Proc) error {
	st := &scorePlayerCtlState{}
	st.playVar = must(p, "play", 0, 0, numDesc(value.FlagBool), true)
	st.pauseVar = must(p, "pause", 0, 0, numDesc(value.FlagBool), true)
	st.seekLocVar = must(p, "seek_loc", 0, 0, numDesc(value.FlagInt32), true)
	st.locVar = must(p, "loc", 0, 0, numDesc(value.FlagInt32), true)
	st.locOutVar = must(p, "loc_out", 0, 0, numDesc(value.FlagInt32), false)
	st.runningVar = must(p, "running", 0, 0, numDesc(value.FlagBool), false)
	p.State = st
	return nil
}
func (sc *ScorePlayerCtl) Destroy(p *proc.Proc) error { return nil }

func (sc *ScorePlayerCtl) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*scorePlayerCtlState)
	switch v {
	case st.playVar:
		val, err := p.VarGet(v, proc.AnyChannel)
		if err != nil {
			return nil
		}
		if on, _ := val.Scalar.Bool(); on {
			st.running = true
		}
	case st.pauseVar:
		val, err := p.VarGet(v, proc.AnyChannel)
		if err != nil {
			return nil
		}
		if on, _ := val.Scalar.Bool(); on {
			st.running = false
		}
	case st.seekLocVar:
		val, err := p.VarGet(v, proc.AnyChannel)
		if err != nil {
			return nil
		}
		loc, _ := val.Scalar.Int64()
		return p.VarSet(st.locOutVar, proc.AnyChannel, proc.ScalarValue(value.Int32(int32(loc))))
	}
	return nil
}
func (sc *ScorePlayerCtl) Report(p *proc.Proc) error { return nil }

func (sc *ScorePlayerCtl) Exec(p *proc.Proc) error {
	st := p.State.(*scorePlayerCtlState)
	if err := p.VarSet(st.runningVar, proc.AnyChannel, proc.ScalarValue(value.Bool(st.running))); err != nil {
		return err
	}
	if !st.running {
		return nil
	}
	val, err := p.VarGet(st.locVar, proc.AnyChannel)
	if err != nil {
		return nil
	}
	return p.VarSet(st.locOutVar, proc.AnyChannel, val)
}

// Print logs its input's value on every notify (spec.md §4.6 "print").
// It uses the same structured logger the rest of the engine does rather
// than writing to stdout directly.
type Print struct {
	Logger *charmlog.Logger
}

type printState struct {
	inVar *proc.Variable
}

func (pr *Print) Create(p *proc.Proc) error {
	p.State = &printState{inVar: must(p, "in", 0, 0, proc.Descriptor{}, true)}
	return nil
}
func (pr *Print) Destroy(p *proc.Proc) error { return nil }

func (pr *Print) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*printState)
	if v != st.inVar || pr.Logger == nil {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	pr.Logger.Info("print", "proc", p.Label, "value", val.Scalar.GoString())
	return nil
}
func (pr *Print) Report(p *proc.Proc) error { return nil }
func (pr *Print) Exec(p *proc.Proc) error   { return nil }

// Halt returns io.EOF from exec once its "fire" input goes true,
// terminating the owning network (spec.md §4.6 "halt").
type Halt struct{}

type haltState struct {
	fireVar *proc.Variable
	fired   bool
}

func (h *Halt) Create(p *proc.Proc) error {
	p.State = &haltState{fireVar: must(p, "fire", 0, 0, numDesc(value.FlagBool), true)}
	return nil
}
func (h *Halt) Destroy(p *proc.Proc) error                  { return nil }
func (h *Halt) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (h *Halt) Report(p *proc.Proc) error                   { return nil }

func (h *Halt) Exec(p *proc.Proc) error {
	st := p.State.(*haltState)
	val, err := p.VarGet(st.fireVar, proc.AnyChannel)
	if err != nil {
		return nil
	}
	if fire, _ := val.Scalar.Bool(); fire {
		st.fired = true
		return engerr.EOF
	}
	return nil
}

// OnStart fires its "out" pulse exactly once, on the network's first
// exec cycle (spec.md §4.6 "on_start").
type OnStart struct{}

type onStartState struct {
	outVar *proc.Variable
	fired  bool
}

func (o *OnStart) Create(p *proc.Proc) error {
	p.State = &onStartState{outVar: must(p, "out", 0, 0, numDesc(value.FlagBool), false)}
	return nil
}
func (o *OnStart) Destroy(p *proc.Proc) error                  { return nil }
func (o *OnStart) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (o *OnStart) Report(p *proc.Proc) error                   { return nil }

func (o *OnStart) Exec(p *proc.Proc) error {
	st := p.State.(*onStartState)
	if st.fired {
		return nil
	}
	st.fired = true
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ScalarValue(value.Bool(true)))
}
