// Package xlua embeds site-supplied Lua scripts into the resource manager.
//
// A calling plugin describes its script with a [Script] and asks for a
// [Handle] with [Script.Resolve] (or [LoadScript] directly). Resolve stats
// the file and, when it is newer than the last load, builds a fresh
// interpreter in this order:
//
//  1. the host table ("slurm") with the logging bridge and result codes
//  2. any plugin libraries ([WithLibrary]) and setup hooks ([WithSetup])
//  3. the script chunk itself
//  4. the entry point contract ([ValidateContract])
//
// Only a handle that passed all four steps is returned, as [Reloaded]. The
// caller switches to it and then retires and closes its previous handle. A
// [Failed] result never touches the previous handle.
//
// Host records reach scripts as read-only views ([RecordKind.Push]) whose
// fields are translated on first access from fixed vocabularies such as
// [JobRecordKind] and [PartitionRecordKind].
package xlua
