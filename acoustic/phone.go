package acoustic

// Phone is a context-independent phone label, e.g. "AH" or "SIL".
type Phone string

// SilencePhone models silence and non-speech noise. Filler words in the
// dictionary are pronounced with it.
const SilencePhone Phone = "SIL"

// NumEmittingStates is the number of emitting states per phone HMM.
const NumEmittingStates = 3

// NumStatesPerPhone is the total states: entry + emitting + exit.
const NumStatesPerPhone = NumEmittingStates + 2

// DefaultPhoneSet returns the ARPAbet phone set used by CMU-style
// dictionaries, with SIL first.
func DefaultPhoneSet() []Phone {
	return []Phone{
		SilencePhone,
		"AA", "AE", "AH", "AO", "AW", "AY",
		"B", "CH", "D", "DH",
		"EH", "ER", "EY",
		"F", "G", "HH",
		"IH", "IY",
		"JH", "K", "L", "M", "N", "NG",
		"OW", "OY",
		"P", "R", "S", "SH", "T", "TH",
		"UH", "UW",
		"V", "W", "Y", "Z", "ZH",
	}
}
