package decoder

import "time"

// Perf is the processing cost of decoding, in seconds. Speech is the
// audio duration, CPU the time spent inside decoder calls and Wall the
// time from StartUtt to EndUtt.
type Perf struct {
	Speech float64
	CPU    float64
	Wall   float64
}

func (p *Perf) add(q Perf) {
	p.Speech += q.Speech
	p.CPU += q.CPU
	p.Wall += q.Wall
}

// RealTime returns CPU seconds per second of speech.
func (p Perf) RealTime() float64 {
	if p.Speech == 0 {
		return 0
	}
	return p.CPU / p.Speech
}

func (d *Decoder) uttPerf() Perf {
	u := d.utt
	if u == nil {
		return Perf{}
	}
	wall := u.wall
	if d.state == InUtterance {
		wall = time.Since(u.begin)
	}
	return Perf{
		Speech: float64(len(u.frames)) / d.featCfg.FrameRate(),
		CPU:    u.cpu.Seconds(),
		Wall:   wall.Seconds(),
	}
}

// UttTime returns the cost of the current or last utterance.
func (d *Decoder) UttTime() Perf { return d.uttPerf() }

// AllTime returns the cost of every utterance ended since creation.
func (d *Decoder) AllTime() Perf { return d.total }
