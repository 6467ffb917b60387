package mcpserver

// ReportFormatContract describes the duplicate report columns and how each
// action is applied, for reviewers editing the report through an LLM client.
const ReportFormatContract = `# Duplicate Report Format

The report is a UTF-8 CSV file with a header row. Two layouts are accepted.

## Multi-rule layout (default)

` + "```" + `
group_id,reason,key,keep_or_delete,item_id,title,vault,urls,username,last_updated,is_newer
` + "```" + `

- ` + "`reason`" + ` is ` + "`exact`" + ` (same normalized URL and username), ` + "`local`" + `
  (localhost or .local host, same title and username) or ` + "`domain`" + ` (same domain and username).
- ` + "`urls`" + ` is a comma-separated list; the first entry is used as the primary URL.
- ` + "`is_newer`" + ` is ` + "`YES`" + ` for the most recently updated member of the group.

## Exact-key layout (legacy)

` + "```" + `
key_type,url_or_title_key,username,item_id,title,url,updatedAt,is_newest,action
` + "```" + `

- ` + "`key_type`" + ` is ` + "`full_url`" + ` or ` + "`local_app`" + `.

## Actions

The action column (` + "`keep_or_delete`" + ` or ` + "`action`" + `) is trimmed and
compared case-insensitively.

| Value   | Effect |
|---------|--------|
| KEEP    | title and url edits are applied |
| REVIEW  | title and url edits are applied |
| ARCHIVE | edits are applied, then the item is moved to the archive |
| DELETE  | the item is deleted permanently; edits on the row are ignored |
| other   | treated as edit-only |

Apply runs every edit first, then every archive, then every delete. Archive and
delete only run when destructive actions are allowed. Rows with an empty
` + "`item_id`" + ` are ignored. An item on several rows is edited, archived or deleted
at most once: its first non-DELETE row supplies the edit, and KEEP beats
ARCHIVE, which beats DELETE. Missing ` + "`item_id`" + `, ` + "`title`" + ` or action columns abort the apply.

## Recommendations

- exact and local groups: the newest member is KEEP, every other member is DELETE.
- domain groups: every member is REVIEW; nothing is deleted automatically.
`
