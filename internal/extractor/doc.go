// Package extractor derives bounded views of a mind-map tree.
//
// Every view is bounded regardless of document size: Summarize descends at
// most Limits.MaxDepth levels and lists at most Limits.MaxChildren children
// per node, KeySections lists at most Limits.MaxSubsections sub-sections per
// top-level branch, and ExtractScenarios returns at most the requested number
// of scenarios. Truncation is always reported (TruncatedChildren,
// AdditionalSubsections, DepthLimitReached) so a consumer can tell a small
// map from a trimmed one.
//
// Scenario scoring is driven by a ScoringTable. DefaultScoringTable carries an
// English and Traditional Chinese vocabulary; callers may supply their own.
package extractor
