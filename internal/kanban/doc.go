// Package kanban keeps one year of finance transactions as a single ordered
// sequence and derives the per-month status columns from it.
//
// The sequence is authoritative: columns, month summaries and balance checks
// are pure functions over it. Every Board operation computes its result from
// one snapshot of the sequence, issues its persistence calls in a fixed order
// and then applies the result. A failed critical step reloads the board from
// the TransactionService instead of trying to roll back in memory.
//
// Installment groups are identified only by the " (k/n)" title suffix. The
// board parses it once per mutation into core.Installment tags.
package kanban
