package protocol

// KeyCode is an Android KeyEvent code injected via remote_key_inject.
type KeyCode int32

// KeyCodeSearch wakes the assistant and starts a voice session.
const KeyCodeSearch KeyCode = 84

// keyCodeByName maps KEYCODE_* names to their Android KeyEvent values.
// Covers the navigation, media, TV and text keys a remote can usefully
// inject; the lookup is case-sensitive like the enum it mirrors.
var keyCodeByName = map[string]KeyCode{
	"KEYCODE_UNKNOWN":             0,
	"KEYCODE_SOFT_LEFT":           1,
	"KEYCODE_SOFT_RIGHT":          2,
	"KEYCODE_HOME":                3,
	"KEYCODE_BACK":                4,
	"KEYCODE_0":                   7,
	"KEYCODE_1":                   8,
	"KEYCODE_2":                   9,
	"KEYCODE_3":                   10,
	"KEYCODE_4":                   11,
	"KEYCODE_5":                   12,
	"KEYCODE_6":                   13,
	"KEYCODE_7":                   14,
	"KEYCODE_8":                   15,
	"KEYCODE_9":                   16,
	"KEYCODE_STAR":                17,
	"KEYCODE_POUND":               18,
	"KEYCODE_DPAD_UP":             19,
	"KEYCODE_DPAD_DOWN":           20,
	"KEYCODE_DPAD_LEFT":           21,
	"KEYCODE_DPAD_RIGHT":          22,
	"KEYCODE_DPAD_CENTER":         23,
	"KEYCODE_VOLUME_UP":           24,
	"KEYCODE_VOLUME_DOWN":         25,
	"KEYCODE_POWER":               26,
	"KEYCODE_CLEAR":               28,
	"KEYCODE_A":                   29,
	"KEYCODE_B":                   30,
	"KEYCODE_C":                   31,
	"KEYCODE_D":                   32,
	"KEYCODE_E":                   33,
	"KEYCODE_F":                   34,
	"KEYCODE_G":                   35,
	"KEYCODE_H":                   36,
	"KEYCODE_I":                   37,
	"KEYCODE_J":                   38,
	"KEYCODE_K":                   39,
	"KEYCODE_L":                   40,
	"KEYCODE_M":                   41,
	"KEYCODE_N":                   42,
	"KEYCODE_O":                   43,
	"KEYCODE_P":                   44,
	"KEYCODE_Q":                   45,
	"KEYCODE_R":                   46,
	"KEYCODE_S":                   47,
	"KEYCODE_T":                   48,
	"KEYCODE_U":                   49,
	"KEYCODE_V":                   50,
	"KEYCODE_W":                   51,
	"KEYCODE_X":                   52,
	"KEYCODE_Y":                   53,
	"KEYCODE_Z":                   54,
	"KEYCODE_COMMA":               55,
	"KEYCODE_PERIOD":              56,
	"KEYCODE_TAB":                 61,
	"KEYCODE_SPACE":               62,
	"KEYCODE_ENTER":               66,
	"KEYCODE_DEL":                 67,
	"KEYCODE_GRAVE":               68,
	"KEYCODE_MINUS":               69,
	"KEYCODE_EQUALS":              70,
	"KEYCODE_SEMICOLON":           74,
	"KEYCODE_APOSTROPHE":          75,
	"KEYCODE_SLASH":               76,
	"KEYCODE_AT":                  77,
	"KEYCODE_PLUS":                81,
	"KEYCODE_MENU":                82,
	"KEYCODE_SEARCH":              84,
	"KEYCODE_MEDIA_PLAY_PAUSE":    85,
	"KEYCODE_MEDIA_STOP":          86,
	"KEYCODE_MEDIA_NEXT":          87,
	"KEYCODE_MEDIA_PREVIOUS":      88,
	"KEYCODE_MEDIA_REWIND":        89,
	"KEYCODE_MEDIA_FAST_FORWARD":  90,
	"KEYCODE_MUTE":                91,
	"KEYCODE_PAGE_UP":             92,
	"KEYCODE_PAGE_DOWN":           93,
	"KEYCODE_ESCAPE":              111,
	"KEYCODE_FORWARD_DEL":         112,
	"KEYCODE_MOVE_HOME":           122,
	"KEYCODE_MOVE_END":            123,
	"KEYCODE_MEDIA_PLAY":          126,
	"KEYCODE_MEDIA_PAUSE":         127,
	"KEYCODE_MEDIA_CLOSE":         128,
	"KEYCODE_MEDIA_EJECT":         129,
	"KEYCODE_MEDIA_RECORD":        130,
	"KEYCODE_VOLUME_MUTE":         164,
	"KEYCODE_INFO":                165,
	"KEYCODE_CHANNEL_UP":          166,
	"KEYCODE_CHANNEL_DOWN":        167,
	"KEYCODE_ZOOM_IN":             168,
	"KEYCODE_ZOOM_OUT":            169,
	"KEYCODE_TV":                  170,
	"KEYCODE_WINDOW":              171,
	"KEYCODE_GUIDE":               172,
	"KEYCODE_DVR":                 173,
	"KEYCODE_BOOKMARK":            174,
	"KEYCODE_CAPTIONS":            175,
	"KEYCODE_SETTINGS":            176,
	"KEYCODE_TV_POWER":            177,
	"KEYCODE_TV_INPUT":            178,
	"KEYCODE_STB_POWER":           179,
	"KEYCODE_STB_INPUT":           180,
	"KEYCODE_AVR_POWER":           181,
	"KEYCODE_AVR_INPUT":           182,
	"KEYCODE_PROG_RED":            183,
	"KEYCODE_PROG_GREEN":          184,
	"KEYCODE_PROG_YELLOW":         185,
	"KEYCODE_PROG_BLUE":           186,
	"KEYCODE_APP_SWITCH":          187,
	"KEYCODE_ASSIST":              219,
	"KEYCODE_BRIGHTNESS_DOWN":     220,
	"KEYCODE_BRIGHTNESS_UP":       221,
	"KEYCODE_MEDIA_AUDIO_TRACK":   222,
	"KEYCODE_SLEEP":               223,
	"KEYCODE_WAKEUP":              224,
	"KEYCODE_PAIRING":             225,
	"KEYCODE_MEDIA_TOP_MENU":      226,
	"KEYCODE_11":                  227,
	"KEYCODE_12":                  228,
	"KEYCODE_LAST_CHANNEL":        229,
	"KEYCODE_TV_DATA_SERVICE":     230,
	"KEYCODE_VOICE_ASSIST":        231,
	"KEYCODE_HELP":                259,
	"KEYCODE_NAVIGATE_PREVIOUS":   260,
	"KEYCODE_NAVIGATE_NEXT":       261,
	"KEYCODE_NAVIGATE_IN":         262,
	"KEYCODE_NAVIGATE_OUT":        263,
	"KEYCODE_MEDIA_SKIP_FORWARD":  272,
	"KEYCODE_MEDIA_SKIP_BACKWARD": 273,
	"KEYCODE_MEDIA_STEP_FORWARD":  274,
	"KEYCODE_MEDIA_STEP_BACKWARD": 275,
	"KEYCODE_ALL_APPS":            284,
}

// KeyCodeValue resolves a key code name, prefixing KEYCODE_ when absent, so
// both "POWER" and "KEYCODE_POWER" work. The lookup is case-sensitive.
func KeyCodeValue(name string) (KeyCode, bool) {
	if len(name) < len("KEYCODE_") || name[:len("KEYCODE_")] != "KEYCODE_" {
		name = "KEYCODE_" + name
	}
	code, ok := keyCodeByName[name]
	return code, ok
}
