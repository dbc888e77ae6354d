package archive

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// idTimeLayout is second-granularity on purpose: the identifier derives
// from the backup timestamp, and a same-second re-run of the same plan
// is surfaced as ErrNameConflict by the writer.
const idTimeLayout = "20060102150405"

// NewID derives an archive identifier from the plan name and the backup
// timestamp: lowercase hex of the BLAKE3 hash of "<name>_<timestamp>".
// The identifier names the backup event, not its content; identical
// trees backed up at different times get distinct identities.
func NewID(planName string, backupTime time.Time) string {
	sum := blake3.Sum256([]byte(planName + "_" + backupTime.UTC().Format(idTimeLayout)))
	return hex.EncodeToString(sum[:])
}
