// Package keywords implements the per-item keyword cursor used by the expert
// track.
//
// A Progress vector holds one State per keyword in the item's keyword order.
// Exactly one entry is Current while work remains; Save, Skip and MarkAbsent
// resolve the cursor and advance it to the lowest Pending index to its right.
// Earlier Pending entries are never revisited automatically. Once no entry is
// Pending or Current the vector is ready to finalize.
//
// Progress is persisted as a JSON array of small integers (Pending=1, Done=2,
// Current=3, Skipped=4), the encoding the annotation client already speaks.
package keywords
