package nixconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"nixstrap/internal/logger"

	"github.com/moby/sys/atomicwriter"
)

const diskPathPrefix = `disk.path = "`

// BlockDevice is one row of `lsblk -d -J -o NAME,SIZE,MODEL,MOUNTPOINT`.
type BlockDevice struct {
	Name       string  `json:"name"`
	Size       string  `json:"size"`
	Model      *string `json:"model"`
	Mountpoint *string `json:"mountpoint"`
}

func (d BlockDevice) Path() string {
	return "/dev/" + d.Name
}

func (d BlockDevice) Info() string {
	model, mount := "-", "-"
	if d.Model != nil && strings.TrimSpace(*d.Model) != "" {
		model = strings.TrimSpace(*d.Model)
	}
	if d.Mountpoint != nil && *d.Mountpoint != "" {
		mount = *d.Mountpoint
	}
	return fmt.Sprintf("%s (size: %s / model: %s / mountpoint: %s)", d.Name, d.Size, model, mount)
}

// BlockDevicesCommand lists whole disks as JSON on the target.
const BlockDevicesCommand = "lsblk -d -J -o NAME,SIZE,MODEL,MOUNTPOINT"

func ParseBlockDevices(data []byte) ([]BlockDevice, error) {
	var out struct {
		BlockDevices []BlockDevice `json:"blockdevices"`
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDevices, err)
	}
	for _, d := range out.BlockDevices {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: device without a name", ErrInvalidDevices)
		}
	}

	return out.BlockDevices, nil
}

// SetDiskDevice points the host's disk.path at /dev/<device>. It reports
// false when the line already had that value.
func (t *Tree) SetDiskDevice(host string, device string) (bool, error) {
	path, err := t.hostFile(host, hostConfigFile)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	device = strings.TrimPrefix(device, "/dev/")
	newLine := fmt.Sprintf(`  disk.path = "/dev/%s";`, device)

	text := string(data)
	trailingNewline := strings.HasSuffix(text, "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), diskPathPrefix) {
			continue
		}

		if strings.TrimSpace(line) == strings.TrimSpace(newLine) {
			logger.Warn("Disk device was already set for %s", host)
			return false, nil
		}

		lines[i] = newLine
		out := strings.Join(lines, "\n")
		if trailingNewline {
			out += "\n"
		}

		mode := os.FileMode(0644)
		if info, err := os.Stat(path); err == nil {
			mode = info.Mode().Perm()
		}
		if err := atomicwriter.WriteFile(path, []byte(out), mode); err != nil {
			return false, err
		}

		logger.Info("Updated disk device for %s to /dev/%s", host, device)
		return true, nil
	}

	return false, fmt.Errorf("%w: %s", ErrDiskPathMissing, path)
}
