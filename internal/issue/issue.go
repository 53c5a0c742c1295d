// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a catalog entry.
//
//nolint:revive // Id is the established name across the catalog
type Id int

const (
	NoHostsId Id = iota + 1
	FabfileNotFoundId
	FabfileParseErrorId
	TaskNotFoundId
	HostUnreachableId
	HostKeyMismatchId
	AuthenticationFailedId
	ConfigLoadFailedId
	HookCycleId
	SudoPasswordRequiredId
)

type (
	// MarkdownMsg is Markdown guidance text.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	//
	//nolint:revive // kept for symmetry with MarkdownMsg
	HttpLink string

	// Issue is a catalog entry of Markdown guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the catalog identifier.
func (i *Issue) Id() Id { return i.id }

// MarkdownMsg returns the raw guidance text.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render renders the guidance for a terminal using the given glamour style
// ("dark", "light", "notty", or a JSON style path).
func (i *Issue) Render(style string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		var sb strings.Builder
		sb.WriteString(md)
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			sb.WriteString("- " + string(link) + "\n")
		}
		md = sb.String()
	}
	return render(md, style)
}

var (
	render = glamour.Render

	noHostsIssue = &Issue{
		id: NoHostsId,
		mdMsg: `
# Nothing to run the command on

A raw command was given after ` + "`--`" + `, but no hosts were selected.

## Things you can try
- Pass one or more hosts:
~~~
$ fab -H web1,web2 -- uptime
~~~
- Run named tasks locally instead by leaving out the raw command.`,
	}

	fabfileNotFoundIssue = &Issue{
		id: FabfileNotFoundId,
		mdMsg: `
# No fabfile found

fab looks for ` + "`fabfile.cue`" + ` in the current directory unless ` + "`--fabfile`" + ` is given.

## Example fabfile
~~~cue
tasks: [
	{
		name: "deploy"
		args: [{name: "branch", default: "main"}]
		cmds: [
			{run: "git -C /srv/app pull origin ${branch}"},
			{run: "systemctl restart app", sudo: true},
		]
	},
]
~~~`,
	}

	fabfileParseErrorIssue = &Issue{
		id: FabfileParseErrorId,
		mdMsg: `
# The fabfile could not be parsed

The error above names the field that failed validation.

## Things you can try
- Every task needs a unique ` + "`name`" + ` and a non-empty ` + "`cmds`" + ` list.
- ` + "`pre`" + ` and ` + "`post`" + ` may only name tasks defined in the same fabfile.`,
	}

	taskNotFoundIssue = &Issue{
		id: TaskNotFoundId,
		mdMsg: `
# Unknown task

## Things you can try
- List the available tasks:
~~~
$ fab list
~~~
- Pass arguments as ` + "`task:key=value,key2=value2`" + `.`,
	}

	hostUnreachableIssue = &Issue{
		id: HostUnreachableId,
		mdMsg: `
# Host unreachable

The TCP connection or SSH handshake did not complete.

## Things you can try
- Check the host name and port (` + "`user@host:port`" + `).
- Raise ` + "`ssh.connect_timeout`" + ` in config.cue.
- Other hosts in the same run were still attempted.`,
	}

	hostKeyMismatchIssue = &Issue{
		id: HostKeyMismatchId,
		mdMsg: `
# Host key verification failed

The host is unknown or its key changed.

## Things you can try
- Connect once with ` + "`ssh`" + ` to record the key in known_hosts.
- Point ` + "`ssh.known_hosts_file`" + ` at the right file.`,
	}

	authenticationFailedIssue = &Issue{
		id: AuthenticationFailedId,
		mdMsg: `
# SSH authentication failed

## Things you can try
- Add a key with ` + "`-i ~/.ssh/id_ed25519`" + ` or ` + "`ssh.identity_files`" + `.
- Make sure ssh-agent is running and ` + "`SSH_AUTH_SOCK`" + ` is exported.
- Check the login user (` + "`-u`" + ` or ` + "`ssh.user`" + `).`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

## Things you can try
- Print the defaults for comparison:
~~~
$ fab config show
~~~
- Remove unknown fields; the schema is closed.`,
	}

	hookCycleIssue = &Issue{
		id: HookCycleId,
		mdMsg: `
# pre/post tasks form a cycle

A task reaches itself through its ` + "`pre`" + ` or ` + "`post`" + ` lists. Break the
loop by removing one of the references named above.`,
	}

	sudoPasswordRequiredIssue = &Issue{
		id: SudoPasswordRequiredId,
		mdMsg: `
# sudo asked for a password

## Things you can try
- Run with ` + "`--prompt-for-sudo-password`" + `.
- Set ` + "`sudo.password`" + ` through the FAB_SUDO_PASSWORD environment variable.`,
	}

	issues = map[Id]*Issue{
		noHostsIssue.Id():              noHostsIssue,
		fabfileNotFoundIssue.Id():      fabfileNotFoundIssue,
		fabfileParseErrorIssue.Id():    fabfileParseErrorIssue,
		taskNotFoundIssue.Id():         taskNotFoundIssue,
		hostUnreachableIssue.Id():      hostUnreachableIssue,
		hostKeyMismatchIssue.Id():      hostKeyMismatchIssue,
		authenticationFailedIssue.Id(): authenticationFailedIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		hookCycleIssue.Id():            hookCycleIssue,
		sudoPasswordRequiredIssue.Id(): sudoPasswordRequiredIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
