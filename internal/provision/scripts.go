package provision

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/vpsinit/internal/util"
)

// SSHDConfigPath is the daemon config edited by the harden step.
const SSHDConfigPath = "/etc/ssh/sshd_config"

// DropInPath is written when sshd_config includes sshd_config.d. Drop-ins
// are read before the main file and the first value wins, so cloud images
// that ship "PasswordAuthentication yes" there would otherwise override
// the main file.
const DropInPath = "/etc/ssh/sshd_config.d/00-vpsinit.conf"

// BackupTimeFormat is the suffix format of sshd_config backups.
const BackupTimeFormat = "20060102_150405"

// Directive is one sshd_config keyword and the value it is forced to.
type Directive struct {
	Key   string
	Value string
}

// HardenDirectives are applied in order by the harden step.
var HardenDirectives = []Directive{
	{"PasswordAuthentication", "no"},
	{"PubkeyAuthentication", "yes"},
	{"ChallengeResponseAuthentication", "no"},
	{"KbdInteractiveAuthentication", "no"},
	{"UsePAM", "no"},
	{"PermitRootLogin", "prohibit-password"},
}

// Package managers the update step knows how to drive, in detection order.
var PackageManagers = []string{"apt-get", "dnf", "yum"}

// sudoPreamble starts every script. Commands run through $SUDO so a
// non-root remote user works when it has passwordless sudo.
const sudoPreamble = `set -eu
SUDO=""
if [ "$(id -u)" -ne 0 ]; then SUDO="sudo -n"; fi
`

// UpdateScript returns the script that refreshes packages with manager and
// installs editor. An empty editor skips the install.
func UpdateScript(manager, editor string) (string, error) {
	var b strings.Builder
	b.WriteString(sudoPreamble)

	switch manager {
	case "apt-get":
		b.WriteString("export DEBIAN_FRONTEND=noninteractive\n")
		b.WriteString("$SUDO apt-get update -y\n")
		b.WriteString("$SUDO apt-get upgrade -y -o Dpkg::Options::=--force-confdef -o Dpkg::Options::=--force-confold\n")
		if editor != "" {
			fmt.Fprintf(&b, "$SUDO apt-get install -y %s\n", util.ShellQuote(editor))
		}
	case "dnf":
		b.WriteString("$SUDO dnf -y upgrade --refresh\n")
		if editor != "" {
			fmt.Fprintf(&b, "$SUDO dnf -y install %s\n", util.ShellQuote(editor))
		}
	case "yum":
		b.WriteString("$SUDO yum -y update\n")
		if editor != "" {
			fmt.Fprintf(&b, "$SUDO yum -y install %s\n", util.ShellQuote(editor))
		}
	default:
		return "", fmt.Errorf("unsupported package manager %q", manager)
	}

	b.WriteString("echo 'packages updated'\n")
	return b.String(), nil
}

// AuthorizedKeysCommand appends the public key read from stdin to the
// remote user's authorized_keys unless an identical line is already there.
// A file whose last line lacks a newline gets one first so the new key
// starts its own line. It is run as the session command; the key arrives
// on stdin.
const AuthorizedKeysCommand = `umask 077
set -eu
key=$(head -n 1)
[ -n "$key" ] || { echo "no key on stdin" >&2; exit 2; }
mkdir -p "$HOME/.ssh"
chmod 700 "$HOME/.ssh"
touch "$HOME/.ssh/authorized_keys"
chmod 600 "$HOME/.ssh/authorized_keys"
AK="$HOME/.ssh/authorized_keys"
if grep -qxF "$key" "$AK"; then
  echo "key already authorized"
else
  if [ -s "$AK" ] && [ "$(tail -c 1 "$AK" | wc -l)" -eq 0 ]; then
    echo >> "$AK"
  fi
  printf '%s\n' "$key" >> "$AK"
  echo "key added"
fi
`

// HardenScript returns the script that backs up sshd_config, forces each
// of HardenDirectives, validates with sshd -t when available and restores
// the backup if validation fails. stamp is formatted with BackupTimeFormat.
func HardenScript(stamp string) string {
	return hardenScript(hardenTarget{conf: SSHDConfigPath, dropIn: DropInPath}, stamp)
}

// hardenTarget names the files the harden script touches. An empty sshd
// means look it up on the server.
type hardenTarget struct {
	conf   string
	dropIn string
	sshd   string
}

// setDirective rewrites the global section of $CONF, the part before the
// first Match line. The first line naming the keyword, commented out or
// not, becomes "key value" and later active duplicates are dropped. A
// keyword that never appears is inserted just before the first Match, or
// appended when there is none. Match blocks are left alone.
const setDirective = `set_directive() {
  TMP=$(mktemp)
  $SUDO awk -v key="$1" -v val="$2" '
    BEGIN { k = tolower(key) }
    !inmatch && tolower($1) == "match" {
      if (!done) { print key " " val; done = 1 }
      inmatch = 1
    }
    !inmatch {
      line = $0
      sub(/^[ \t]*/, "", line)
      commented = sub(/^#[ \t]*/, "", line)
      split(line, f, /[ \t=]+/)
      if (tolower(f[1]) == k) {
        if (!done) { print key " " val; done = 1; next }
        if (!commented) next
      }
    }
    { print }
    END { if (!done) print key " " val }
  ' "$CONF" > "$TMP"
  $SUDO cp "$TMP" "$CONF"
  rm -f "$TMP"
}
`

func hardenScript(t hardenTarget, stamp string) string {
	var b strings.Builder
	b.WriteString(sudoPreamble)
	fmt.Fprintf(&b, "CONF=%s\n", util.ShellQuote(t.conf))
	fmt.Fprintf(&b, "BACKUP=\"$CONF.backup.%s\"\n", stamp)
	fmt.Fprintf(&b, "DROPIN=%s\n", util.ShellQuote(t.dropIn))
	fmt.Fprintf(&b, "SSHD=%s\n", util.ShellQuote(t.sshd))
	b.WriteString(`DROPIN_DIR=$(dirname "$DROPIN")
[ -f "$CONF" ] || { echo "$CONF not found" >&2; exit 2; }
$SUDO cp -p "$CONF" "$BACKUP"
echo "backup: $BACKUP"

`)
	b.WriteString(setDirective)
	b.WriteString("\n")
	for _, d := range HardenDirectives {
		fmt.Fprintf(&b, "set_directive %s %s\n", d.Key, d.Value)
	}

	b.WriteString(`
WROTE_DROPIN=0
if [ -d "$DROPIN_DIR" ] && $SUDO grep -qiE '^[[:space:]]*Include[[:space:]].*sshd_config\.d' "$CONF"; then
  $SUDO tee "$DROPIN" >/dev/null <<'DROPIN_EOF'
`)
	for _, d := range HardenDirectives {
		fmt.Fprintf(&b, "%s %s\n", d.Key, d.Value)
	}
	b.WriteString(`DROPIN_EOF
  $SUDO chmod 644 "$DROPIN"
  WROTE_DROPIN=1
  echo "drop-in: $DROPIN"
fi

if [ -z "$SSHD" ]; then
  SSHD=$(command -v sshd 2>/dev/null || true)
  if [ -z "$SSHD" ] && [ -x /usr/sbin/sshd ]; then SSHD=/usr/sbin/sshd; fi
fi
if [ -n "$SSHD" ]; then
  if ! $SUDO "$SSHD" -t -f "$CONF"; then
    $SUDO cp -p "$BACKUP" "$CONF"
    if [ "$WROTE_DROPIN" -eq 1 ]; then $SUDO rm -f "$DROPIN"; fi
    echo "sshd -t rejected the new configuration; restored $BACKUP" >&2
    exit 3
  fi
else
  echo "sshd binary not found; skipping config validation" >&2
fi
echo "sshd_config hardened"
`)
	return b.String()
}

// RestartScript reloads systemd, restarts ssh (Debian family) or sshd
// (everything else), and restarts ssh.socket when that unit exists.
const RestartScript = sudoPreamble + `if command -v systemctl >/dev/null 2>&1; then
  $SUDO systemctl daemon-reload
  if systemctl cat ssh.service >/dev/null 2>&1; then UNIT=ssh; else UNIT=sshd; fi
  $SUDO systemctl restart "$UNIT"
  if systemctl cat ssh.socket >/dev/null 2>&1; then
    $SUDO systemctl restart ssh.socket || true
  fi
  echo "restarted $UNIT"
else
  $SUDO service ssh restart 2>/dev/null || $SUDO service sshd restart
  echo "restarted via service"
fi
`
