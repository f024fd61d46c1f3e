package protocol

import (
	"fmt"

	"github.com/flashbots/mamchan/crypto"
)

// EncodedMessage is a signed, possibly masked payload ready to be attached
// to the ledger at Address.
type EncodedMessage struct {
	Payload []byte `json:"payload"`

	// Root authenticates this message.
	Root crypto.Hash `json:"root"`

	// Address equals Root in public mode and hash(Root) otherwise.
	Address crypto.Hash `json:"address"`

	// NextRoot is the forward pointer embedded in the payload.
	NextRoot crypto.Hash `json:"next_root"`

	// LeafIndex is the global index of the leaf that signed the message.
	LeafIndex uint64 `json:"leaf_index"`
}

// Encode signs body with the next unused leaf, embeds the next epoch's root,
// masks the result according to the channel mode and advances the channel.
// On error the channel state is unchanged.
func (c *Channel) Encode(body []byte) (*EncodedMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state
	if st.Index >= st.Count {
		return nil, fmt.Errorf("%w: index %d of %d", ErrKeyExhausted, st.Index, st.Count)
	}

	advanced, err := st.advanced(c.growth)
	if err != nil {
		return nil, err
	}

	current, err := c.currentTree()
	if err != nil {
		return nil, err
	}
	next, err := c.nextTree()
	if err != nil {
		return nil, err
	}

	root := current.Root()
	nextRoot := next.Root()

	path, err := current.MembershipPath(st.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTreeBuild, err)
	}
	key, err := current.LeafKey(st.Index)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	hdr := header{
		version:   PayloadVersion,
		mode:      st.Mode,
		security:  st.Security,
		depth:     current.Depth(),
		epochSize: st.Count,
		offset:    st.Index,
	}.marshal()

	plain := make([]byte, 0, len(body)+crypto.HashSize)
	plain = append(plain, body...)
	plain = append(plain, nextRoot[:]...)

	signature := key.Sign(signedData(hdr, plain))

	if st.Mode != Public {
		crypto.MaskInplace(plain, st.SideKey, root, st.Index)
	}

	payload := make([]byte, 0, payloadSize(st.Security, len(path), len(body)))
	payload = append(payload, hdr...)
	for i := range path {
		payload = append(payload, path[i][:]...)
	}
	payload = append(payload, signature...)
	payload = append(payload, plain...)

	msg := &EncodedMessage{
		Payload:   payload,
		Root:      root,
		Address:   Address(root, st.Mode),
		NextRoot:  nextRoot,
		LeafIndex: st.LeafIndex(),
	}

	advanced.NextRoot = nextRoot
	c.commit(advanced)

	return msg, nil
}
