package tmconsensus

// SignedVote pairs a Vote with the signature its voter produced over it.
type SignedVote struct {
	Vote      Vote
	Signature []byte
}

// SignedProposal pairs a Proposal with the proposer's signature over it.
type SignedProposal struct {
	Proposal  Proposal
	Signature []byte
}
