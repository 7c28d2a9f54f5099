package wordsync

import (
	"bytes"
	"encoding/json"

	"github.com/alexjbarnes/wordswipe-sync/internal/docstore"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
)

var jsonNull = []byte("null")

func studiedFromFields(f docstore.Fields) models.StudiedSet {
	set := make(models.StudiedSet, len(f))
	for k, v := range f {
		if isNull(v) {
			continue
		}

		set[k] = models.ProgressRecord(v)
	}

	return set
}

func studiedToFields(set models.StudiedSet) docstore.Fields {
	f := make(docstore.Fields, len(set))
	for k, v := range set {
		if len(v) == 0 {
			continue
		}

		f[k] = json.RawMessage(v)
	}

	return f
}

func statsFromFields(f docstore.Fields) models.StatsSet {
	set := make(models.StatsSet, len(f))
	for k, v := range f {
		if isNull(v) {
			continue
		}

		set[k] = models.DayStats(v)
	}

	return set
}

func statsToFields(set models.StatsSet) docstore.Fields {
	f := make(docstore.Fields, len(set))
	for k, v := range set {
		if len(v) == 0 {
			continue
		}

		f[k] = json.RawMessage(v)
	}

	return f
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), jsonNull)
}

func statsEqual(a, b models.StatsSet) bool {
	if len(a) != len(b) {
		return false
	}

	for k, v := range a {
		w, ok := b[k]
		if !ok || !bytes.Equal(v, w) {
			return false
		}
	}

	return true
}
