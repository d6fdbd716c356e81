package bulkdata

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const sampleHeader = "#FBst\tcollection_short_name\tstock_type_cv\tspecies\tFB_genotype\tdescription\tstock_number"

// sampleRows follows the FlyBase precomputed stocks layout.
var sampleRows = []string{
	"FBst0080563\tBloomington\tliving stock\tDmel\tw[*]; P{Gr21a-GAL80.S}2\t\t80563",
	"FBst0080560\tBloomington\tliving stock\tDmel\ty[1] w[*]; P{UAS-GFP}attP2\t\t80560",
	"FBst0090001\tBloomington\tliving stock\tDmel\tw[1118]; P{GMR-GAL4}3\t\t90001",
	"FBst0099999\tVienna\tliving stock\tDmel\tw[1118]; P{GD12345}v12345\t\tGD12345",
	"FBst0100001\tKyoto\tliving stock\tDmel\ty[1] w[67c23]\t\t101001",
}

func sampleFile(extra ...string) string {
	lines := []string{
		"## FlyBase stocks file",
		"## Generated for tests",
		sampleHeader,
	}
	lines = append(lines, sampleRows...)
	lines = append(lines, extra...)
	lines = append(lines, "## Finished stocks report.")
	return strings.Join(lines, "\n") + "\n"
}

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
