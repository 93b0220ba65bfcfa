package denylist

import "github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"

// DefaultPatterns contains the built-in dangerous-text patterns.
// These are the destructive or credential-stealing strings that must never
// reach the keyboard injection layer.
var DefaultPatterns = config.DenylistPatterns{
	Substrings: []string{
		"rm -rf /",
		"rm -rf ~",
		"rm -rf *",
		"dd if=/dev/zero",
		"dd if=/dev/random",
		":(){ :|:& };:",
		"mkfs.",
		"> /dev/sda",
		"chmod -r 777 /",
		"chown -r",
		"shutdown -h",
		"shutdown now",
		"reboot now",
		"init 0",
		"killall -9",
		"sudo su",
		"sudo -i",
		"del /f /s /q",
		"format c:",
		"/proc/self/environ",
		"history -c",
	},
	Regex: []string{
		`rm\s+-[a-z]*r[a-z]*f`,
		`dd\s+if=/dev/`,
		`mkfs\.[a-z0-9]+`,
		`:\(\)\s*\{.*\};\s*:`,
		`>\s*/dev/sd[a-z]`,
	},
}
