package command

// defaultDefinitions is the built-in presentation command set. English and
// Indonesian phrasings are both listed because presenters mix them freely.
var defaultDefinitions = []Definition{
	{
		ID:          Next,
		Phrases:     []string{"next slide", "slide next", "lanjut slide", "slide lanjut"},
		Weight:      10,
		Description: "Next slide",
		Action:      "RIGHT",
	},
	{
		ID:          Previous,
		Phrases:     []string{"back slide", "slide back", "mundur slide", "slide mundur", "previous slide", "slide previous"},
		Weight:      10,
		Description: "Previous slide",
		Action:      "LEFT",
	},
	{
		ID: OpenSlideshow,
		Phrases: []string{
			"open slide show", "slide show open", "start slide show", "slide show start",
			"mulai slide show", "slide show mulai", "buka slide show", "slide show buka", "f5",
			"mulai presentasi", "presentasi mulai", "buka presentasi", "presentasi buka",
			"start presentation", "presentation start", "open slide", "open side show", "open slideshows",
		},
		Weight:      15,
		Description: "Start the slideshow",
		Action:      "F5",
	},
	{
		ID: CloseSlideshow,
		Phrases: []string{
			"close slide show", "slide show close", "quit slide show", "slide show quit",
			"keluar slide show", "slide show keluar", "tutup slide show", "slide show tutup",
			"stop slide show", "slide show stop", "akhiri presentasi", "presentasi akhiri",
			"tutup presentasi", "presentasi tutup", "end presentation", "presentation end",
			"exit slideshow", "slideshow exit", "close slide", "close side show", "close slideshows",
		},
		Weight:      15,
		Description: "End the slideshow",
		Action:      "ESC",
	},
	{
		ID: Help,
		Phrases: []string{
			"help menu", "menu help", "bantuan menu", "menu bantuan", "helm menu", "hal menu",
			"helmmu", "menu bantu", "menu bantuanmu", "menu bantuin", "held menu", "hell menu", "help me menu",
		},
		Weight:      8,
		Description: "Show help",
	},
	{
		ID: Stop,
		Phrases: []string{
			"stop program", "program stop", "berhenti program", "program berhenti", "stop", "berhenti",
			"stok program", "setiap program", "top program", "stop programnya", "stop progran",
		},
		Weight:      15,
		Description: "Stop the program",
	},
	{
		ID:          TestMic,
		Phrases:     []string{"test mic", "mic test", "test microphone", "microphone test", "test audio", "audio test"},
		Weight:      8,
		Description: "Test the microphone",
	},
	{
		ID:          ToggleNoise,
		Phrases:     []string{"toggle noise", "noise toggle", "noise reduction", "reduction noise", "noise on", "noise off"},
		Weight:      8,
		Description: "Toggle noise reduction",
	},
	{
		ID:          PopupOn,
		Phrases:     []string{"popup on", "show popup", "popup show", "enable popup", "popup enable", "turn on popup", "popup turn on"},
		Weight:      8,
		Description: "Show the accessibility popup",
	},
	{
		ID:          PopupOff,
		Phrases:     []string{"popup off", "hide popup", "popup hide", "disable popup", "popup disable", "turn off popup", "popup turn off"},
		Weight:      8,
		Description: "Hide the accessibility popup",
	},
	{
		ID: CaptionOn,
		Phrases: []string{
			"caption on", "start caption", "caption start", "enable caption", "caption enable",
			"turn on caption", "caption turn on", "live caption on", "caption live on",
		},
		Weight:      8,
		Description: "Start live captions",
	},
	{
		ID: CaptionOff,
		Phrases: []string{
			"caption off", "stop caption", "caption stop", "disable caption", "caption disable",
			"turn off caption", "caption turn off", "live caption off", "caption live off",
		},
		Weight:      12,
		Description: "Stop live captions",
	},
	{
		ID:          ChangeLanguage,
		Phrases:     []string{"change language", "language change", "switch language", "language switch", "ganti bahasa", "bahasa ganti"},
		Weight:      7,
		Description: "Change caption language",
	},
	{
		ID:          ShowAnalytics,
		Phrases:     []string{"show analytics", "analytics show", "display analytics", "analytics display", "session stats", "stats session"},
		Weight:      7,
		Description: "Show session analytics",
	},
}

// Default returns a fresh copy of the built-in command table.
func Default() *Table {
	t, err := NewTable(DefaultDefinitions()...)
	if err != nil {
		panic("command: built-in table is invalid: " + err.Error())
	}
	return t
}

// DefaultDefinitions returns a deep copy of the built-in definitions, suitable
// for applying overrides before calling [NewTable].
func DefaultDefinitions() []Definition {
	out := make([]Definition, len(defaultDefinitions))
	for i, d := range defaultDefinitions {
		d.Phrases = append([]string(nil), d.Phrases...)
		out[i] = d
	}
	return out
}
