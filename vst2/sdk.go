package vst2

import (
	"math"
	"time"
	"unsafe"

	"github.com/dudk/vst2"
)

const (
	// tempo reported to plugins, in beats per minute.
	tempo = 120
	// notesPerBar of the reported 4/4 time signature.
	notesPerBar = 4
)

// sdkPlugin binds the plugin loaded from a library.
type sdkPlugin struct {
	library *vst2.Library
	plugin  *vst2.Plugin
}

func open(path string, t *transport) (*sdkPlugin, error) {
	library, err := vst2.Open(path)
	if err != nil {
		return nil, err
	}
	plugin, err := library.Open()
	if err != nil {
		library.Close()
		return nil, err
	}
	plugin.SetCallback(t.callback())
	return &sdkPlugin{library: library, plugin: plugin}, nil
}

// callback answers plugin requests to the host.
func (t *transport) callback() vst2.HostCallbackFunc {
	return func(plugin *vst2.Plugin, opcode vst2.MasterOpcode, index int64, value int64, ptr unsafe.Pointer, opt float64) int {
		switch opcode {
		case vst2.AudioMasterIdle:
			plugin.Dispatch(vst2.EffEditIdle, 0, 0, nil, 0)
		case vst2.AudioMasterGetTime:
			sampleRate := int(t.sampleRate.Load())
			position := t.position.Load()
			ppq, bar := t.musicalPosition()
			signature := vst2.TimeSignature{NotesPerBar: notesPerBar, NoteValue: 4}
			return int(plugin.SetTimeInfo(sampleRate, position, tempo, signature, time.Now().UnixNano(), ppq, bar))
		default:
			if v, ok := t.answer(opcode); ok {
				return v
			}
		}
		return 0
	}
}

// answer returns values of the host format requested by the plugin.
func (t *transport) answer(opcode vst2.MasterOpcode) (int, bool) {
	switch opcode {
	case vst2.AudioMasterGetSampleRate:
		return int(t.sampleRate.Load()), true
	case vst2.AudioMasterGetBlockSize:
		return int(t.blockSize.Load()), true
	}
	return 0, false
}

// musicalPosition returns the position in quarter notes, starting at one,
// and the bar of the position.
func (t *transport) musicalPosition() (ppq, bar float64) {
	sampleRate := t.sampleRate.Load()
	if sampleRate == 0 {
		return 1, 0
	}
	samplesPerBeat := 60.0 / tempo * float64(sampleRate)
	ppq = float64(t.position.Load())/samplesPerBeat + 1
	bar = math.Floor(ppq / notesPerBar)
	return ppq, bar
}

func (p *sdkPlugin) SetSampleRate(rate int) {
	p.plugin.SetSampleRate(rate)
}

func (p *sdkPlugin) SetBufferSize(size int) {
	p.plugin.SetBufferSize(size)
}

func (p *sdkPlugin) SetSpeakerArrangement(channels int) {
	p.plugin.SetSpeakerArrangement(channels)
}

func (p *sdkPlugin) Resume() {
	p.plugin.Resume()
}

func (p *sdkPlugin) Suspend() {
	p.plugin.Suspend()
}

func (p *sdkPlugin) Process(samples [][]float64) [][]float64 {
	return p.plugin.Process(samples)
}

func (p *sdkPlugin) Close() error {
	p.plugin.Close()
	p.library.Close()
	return nil
}
