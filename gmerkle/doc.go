// Package gmerkle produces a Gordian-flavored Merkle tree: a complete
// binary tree in array layout whose parent nodes are the pairwise
// aggregation of their children, under a caller-supplied [Scheme].
//
// The aggregation is generic rather than fixed to hashing, so the same
// tree shape serves both content integrity (aggregate = hash of the two
// children, as tmpart uses for proposal part streams) and signature
// aggregation for key schemes whose keys combine pairwise.
package gmerkle
