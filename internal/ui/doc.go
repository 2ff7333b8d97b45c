// Package ui renders engine results for the terminal with [lipgloss] styles.
//
// Lists ([RenderCommunities], [RenderProposals]) print one numbered title line per entry
// followed by a dimmed description line. Detail views ([RenderCommunity], [RenderProposal],
// [RenderCredential]) print aligned label/value pairs. Status labels are colored by
// [StatusStyle]: accepted in green, denied in red, pending in orange.
package ui
