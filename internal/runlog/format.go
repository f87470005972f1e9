package runlog

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimeLayout is the timestamp written at the start of every file line.
const TimeLayout = "2006-01-02 15:04:05,000"

// tabFormatter writes "time<TAB>message" lines. With fields set it adds the
// level after the time and appends the entry fields as key=value.
type tabFormatter struct {
	fields bool
}

func (f *tabFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(TimeLayout))
	b.WriteByte('\t')
	if f.fields {
		b.WriteString(strings.ToUpper(e.Level.String()))
		b.WriteByte('\t')
	}
	b.WriteString(e.Message)
	if f.fields && len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\t%s=%v", k, e.Data[k])
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
