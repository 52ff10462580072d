package commands

import (
	"context"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
	"github.com/vitaminmoo/rtrk-tool/internal/util"
)

// Raw sends text verbatim and prints the reply. Replies that are not
// printable text are hex dumped, as are all replies when hexDump is set.
func (r *Runner) Raw(ctx context.Context, text string, hexDump bool) error {
	raw, err := r.Client.SendRaw(ctx, r.DeviceID, text)
	if err != nil {
		return err
	}
	v, err := r.Client.Vocabulary().Decode(protocol.KindRaw, raw)
	if err != nil {
		return err
	}
	reply, _ := v.(string)
	if r.JSON {
		return r.PrintJSON(map[string]string{"command": text, "response": reply})
	}
	if hexDump || !util.IsTextData([]byte(reply)) {
		r.printf("Received %d bytes:\n", len(raw))
		util.HexDump(r.out(), raw)
		return nil
	}
	r.printf("%s\n", reply)
	return nil
}
