package services

import (
  "sort"

  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

// DiffCodeSets computes the symmetric difference between the previous and new
// membership, keyed by code. Codes only in previous are removed, codes only
// in next are added; unchanged codes produce nothing. Outputs are sorted by
// code so a session's ledger is deterministic.
func DiffCodeSets(previous, next []types.CodeRef) (added, removed []types.CodeRef) {
  prevByCode := make(map[string]types.CodeRef, len(previous))
  for _, c := range previous {
    prevByCode[c.Code] = c
  }
  nextByCode := make(map[string]types.CodeRef, len(next))
  for _, c := range next {
    nextByCode[c.Code] = c
  }

  for code, c := range nextByCode {
    if _, ok := prevByCode[code]; !ok {
      added = append(added, c)
    }
  }
  for code, c := range prevByCode {
    if _, ok := nextByCode[code]; !ok {
      removed = append(removed, c)
    }
  }

  sort.Slice(added, func(i, j int) bool { return added[i].Code < added[j].Code })
  sort.Slice(removed, func(i, j int) bool { return removed[i].Code < removed[j].Code })
  return added, removed
}
