package gpu

import (
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Vivicai1005/aiter/pkg/compute/capacity"
	"github.com/Vivicai1005/aiter/pkg/models"
)

const (
	amdVendorMarker = "[AMD/ATI]"
	bytesPerMiB     = 1024 * 1024
)

// cardSeriesArchs maps marketing names reported by rocm-smi to compiler
// offload targets, for tool versions that do not report a GFX Version field.
var cardSeriesArchs = map[string]string{
	"Instinct MI210":     "gfx90a",
	"Instinct MI250":     "gfx90a",
	"Instinct MI250X":    "gfx90a",
	"Instinct MI300A":    "gfx940",
	"Instinct MI300X":    "gfx942",
	"Instinct MI325X":    "gfx942",
	"Radeon RX 7900 XTX": "gfx1100",
	"Radeon RX 7900 XT":  "gfx1100",
	"Radeon PRO W7900":   "gfx1100",
}

type AMDGPUProvider struct {
	provides string
	tool     string
	args     []string
}

func NewAMDGPUProvider() *AMDGPUProvider {
	return &AMDGPUProvider{
		provides: "AMD GPUs",
		tool:     "rocm-smi",
		args: []string{
			"--showproductname",
			"--showmeminfo", "vram",
			"--showbus",
			"--json",
		},
	}
}

func (p *AMDGPUProvider) ResourceType() string {
	return p.provides
}

func (p *AMDGPUProvider) GetGPUs(ctx context.Context) ([]models.GPU, error) {
	toolPath, err := exec.LookPath(p.tool)
	if err != nil {
		return nil, errors.Wrapf(err, "%s not installed", p.tool)
	}

	cmd := exec.CommandContext(ctx, toolPath, p.args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "error calling %s %s", p.tool, strings.Join(p.args, " "))
	}

	return parseRocmSMIOutput(strings.NewReader(string(output)))
}

// rocm-smi emits a map of "cardN" keys to string-valued attribute maps.
func parseRocmSMIOutput(reader io.Reader) ([]models.GPU, error) {
	var cards map[string]map[string]string
	if err := json.NewDecoder(reader).Decode(&cards); err != nil {
		return nil, errors.Wrap(err, "failed to parse rocm-smi output")
	}

	gpus := make([]models.GPU, 0, len(cards))
	for key, attributes := range cards {
		index, err := strconv.ParseUint(strings.TrimPrefix(key, "card"), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "unexpected card key %q in rocm-smi output", key)
		}

		gpu := models.GPU{
			Index:        index,
			Name:         attributes["Card series"],
			PCIAddress:   strings.ToLower(attributes["PCI Bus"]),
			Architecture: lookupArch(attributes),
		}

		if strings.Contains(attributes["Card vendor"], amdVendorMarker) {
			gpu.Vendor = models.GPUVendorAMDATI
		}

		if vram, ok := attributes["VRAM Total Memory (B)"]; ok {
			vramBytes, err := strconv.ParseUint(vram, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "unexpected VRAM value %q for %s", vram, key)
			}
			gpu.Memory = vramBytes / bytesPerMiB
		}

		gpus = append(gpus, gpu)
	}

	sort.Slice(gpus, func(i, j int) bool { return gpus[i].Index < gpus[j].Index })
	return gpus, nil
}

func lookupArch(attributes map[string]string) string {
	if arch := attributes["GFX Version"]; arch != "" {
		return strings.ToLower(arch)
	}
	return cardSeriesArchs[attributes["Card series"]]
}

// compile-time check that the provider implements the interface
var _ capacity.GPUProvider = (*AMDGPUProvider)(nil)
