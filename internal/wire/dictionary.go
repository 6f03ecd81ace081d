package wire

// abbreviationPairs is the single source of truth for the abbreviated-key
// JSON dictionary (§4.3): every key name the HUD builder or action parser
// emits, paired with a short reversible form. Kept as an ordered list of
// pairs (not two independently-maintained maps) so a duplicate short key
// is a compile-visible list-literal mistake rather than a silent collision.
var abbreviationPairs = [][2]string{
	{"system", "sys"},
	{"meta", "mta"},
	{"agents", "ags"},
	{"agent_rooms", "arm"},
	{"warnings", "wrn"},
	{"total", "tot"},
	{"free", "fre"},
	{"your_agent_id", "yid"},
	{"directives", "dir"},
	{"current_time", "ctm"},
	{"instructions", "ins"},
	{"available_actions", "aac"},
	{"name", "nam"},
	{"inputs", "inp"},
	{"requires", "req"},
	{"id", "iid"},
	{"display_name", "dnm"},
	{"model", "mdl"},
	{"seed", "sed"},
	{"knowledge", "knw"},
	{"recent_actions", "rac"},
	{"agent_id", "aid"},
	{"members", "mbr"},
	{"messages", "msg"},
	{"billboard", "bil"},
	{"sender_agent_id", "said"},
	{"sender_name", "snm"},
	{"content", "cnt"},
	{"type", "typ"},
	{"reply_to", "rto"},
	{"timestamp", "tsp"},
	{"actions", "act"},
	{"responses", "rsp"},
	{"path", "pth"},
	{"value", "val"},
	{"room_id", "rid"},
	{"agent_type", "atp"},
	{"in_room_id", "irid"},
	{"until", "unt"},
	{"wpm", "wpm"},
	{"background_prompt", "bgp"},
	{"kind", "knd"},
	{"result", "res"},
	{"summary", "sum"},
	{"outcome", "otc"},
	{"memory", "mem"},
	{"response_format", "rsf"},
	{"action", "acn"},
	{"level", "lvl"},
	{"area", "ara"},
	{"message", "mge"},
	{"usage", "usg"},
	{"budget", "bdg"},
	{"note", "nte"},
}

var keyToShort = map[string]string{}
var shortToKey = map[string]string{}

func init() {
	for _, pair := range abbreviationPairs {
		full, short := pair[0], pair[1]
		if _, dup := keyToShort[full]; dup {
			panic("wire: duplicate full key in abbreviation dictionary: " + full)
		}
		if _, dup := shortToKey[short]; dup {
			panic("wire: duplicate short key in abbreviation dictionary: " + short)
		}
		keyToShort[full] = short
		shortToKey[short] = full
	}
}

func toShortKey(full string) string {
	if s, ok := keyToShort[full]; ok {
		return s
	}
	return full
}

func toFullKey(short string) string {
	if f, ok := shortToKey[short]; ok {
		return f
	}
	return short
}
