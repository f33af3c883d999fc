package tmconsensus

// Height identifies a single agreement slot. Heights begin at
// InitialHeight (configured on the engine, see tmengine.WithInitialHeight)
// and increase by one each time a value is decided.
type Height uint64

// Next returns the height immediately following h.
func (h Height) Next() Height {
	return h + 1
}
