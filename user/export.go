// Export/import of the full user state (spec.md §4.G, §6): identity,
// channel address, cursor table, subscriber set, PSK store and channel
// type are serialized to JSON and masked under a spongos stream keyed by a
// password and a random salt, then framed as
// magic(4) || version(1) || salt(16) || encrypted(...), mirroring the
// teacher's key.PrivateTOML/PublicTOML persistence model but with the
// payload encrypted rather than stored in the clear, per spec.md §6.
package user

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/drand/channels/key"
	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/spongos"
	"github.com/drand/channels/transport"
)

var exportMagic = [4]byte{'c', 'h', 'n', 'l'}

const (
	exportVersion = 1
	saltSize      = 16
)

type exportedCursor struct {
	MsgID    string
	BranchNo uint32
	SeqNo    uint32
}

type exportedIdentity struct {
	Ed25519 string
	X25519  string
}

type exportedState struct {
	Seed         string // hex ed25519 seed
	AppInst      string
	Nonce        string
	ChanType     int
	Registered   bool
	AuthorPub    *exportedIdentity
	AnnounceLink string // hex msgid, empty if unset
	BranchRoot   string
	BranchNo     uint32
	HaveSession  bool
	SessionKey   string

	Subscribers []exportedIdentity
	Psks        []string // hex-encoded 32-byte psks

	Shared       *exportedCursor
	Cursors      map[string]exportedCursor // keyed by subscriber/author ed25519 hex
	SeqCursors   map[string]exportedCursor
	OwnRegCursor *exportedCursor

	// Checkpoints carries the committed spongos state per decoded MsgID
	// (hex msgid -> hex spongos dump). Without them an imported user could
	// not resume any transcript, so its next wrap would fail with
	// ErrUnknownPredecessor. They only ever exist inside the
	// password-masked blob, preserving the "never observed externally"
	// invariant.
	Checkpoints map[string]string
}

func toExportedIdentity(p *key.PublicIdentity) *exportedIdentity {
	if p == nil {
		return nil
	}
	return &exportedIdentity{Ed25519: hex.EncodeToString(p.Bytes()), X25519: hex.EncodeToString(p.X25519PK[:])}
}

func fromExportedIdentity(e *exportedIdentity) (*key.PublicIdentity, error) {
	if e == nil {
		return nil, nil
	}
	edBuf, err := hex.DecodeString(e.Ed25519)
	if err != nil {
		return nil, err
	}
	xBuf, err := hex.DecodeString(e.X25519)
	if err != nil {
		return nil, err
	}
	var xArr [32]byte
	copy(xArr[:], xBuf)
	return key.NewPublicIdentity(edBuf, xArr)
}

func toExportedCursor(c *Cursor) *exportedCursor {
	if c == nil {
		return nil
	}
	return &exportedCursor{MsgID: hex.EncodeToString(c.LastLink.MsgID[:]), BranchNo: c.BranchNo, SeqNo: c.SeqNo}
}

func fromExportedCursor(addr message.Address, e *exportedCursor) (*Cursor, error) {
	if e == nil {
		return nil, nil
	}
	idBuf, err := hex.DecodeString(e.MsgID)
	if err != nil {
		return nil, err
	}
	var id message.MsgID
	copy(id[:], idBuf)
	return &Cursor{LastLink: message.Link{Address: addr, MsgID: id}, BranchNo: e.BranchNo, SeqNo: e.SeqNo}, nil
}

// export serializes s into the password-protected blob format of spec.md
// §6.
func (s *State) export(password string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := exportedState{
		Seed:        hex.EncodeToString(s.priv.Ed25519.Seed()),
		AppInst:     hex.EncodeToString(s.address.AppInst[:]),
		Nonce:       hex.EncodeToString(s.address.Nonce[:]),
		ChanType:    int(s.chanType),
		Registered:  s.registered,
		AuthorPub:   toExportedIdentity(s.authorPub),
		BranchNo:    s.branchNo,
		HaveSession: s.haveSession,
		SessionKey:  hex.EncodeToString(s.sessionKey[:]),
		Psks:        pskHexes(s.psks.All()),
		Shared:      toExportedCursor(s.shared),
	}
	if !s.announceLnk.IsZero() {
		e.AnnounceLink = hex.EncodeToString(s.announceLnk.MsgID[:])
	}
	if !s.branchRoot.IsZero() {
		e.BranchRoot = hex.EncodeToString(s.branchRoot.MsgID[:])
	}
	for _, p := range s.subscribers {
		e.Subscribers = append(e.Subscribers, *toExportedIdentity(p))
	}
	e.Cursors = make(map[string]exportedCursor, len(s.cursors))
	for k, c := range s.cursors {
		e.Cursors[k] = *toExportedCursor(c)
	}
	e.SeqCursors = make(map[string]exportedCursor, len(s.seqCursors))
	for k, c := range s.seqCursors {
		e.SeqCursors[k] = *toExportedCursor(c)
	}
	e.OwnRegCursor = toExportedCursor(s.ownRegCursor)
	e.Checkpoints = make(map[string]string, len(s.checkpoints))
	for id, sp := range s.checkpoints {
		dump, err := sp.MarshalBinary()
		if err != nil {
			return nil, err
		}
		e.Checkpoints[hex.EncodeToString(id[:])] = hex.EncodeToString(dump)
	}

	plain, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	cipher := encryptWithPassword(password, salt, plain)

	var buf bytes.Buffer
	buf.Write(exportMagic[:])
	buf.WriteByte(exportVersion)
	buf.Write(salt[:])
	buf.Write(cipher)
	return buf.Bytes(), nil
}

// importState reverses export into a fresh State. tr/lg are supplied by the
// caller since a transport client is a live external resource, never
// serialized.
func importState(blob []byte, password string, tr transport.Transport, lg log.Logger) (*State, error) {
	if len(blob) < 4+1+saltSize {
		return nil, ErrDecryptError
	}
	if !bytes.Equal(blob[:4], exportMagic[:]) || blob[4] != exportVersion {
		return nil, ErrDecryptError
	}
	var salt [saltSize]byte
	copy(salt[:], blob[5:5+saltSize])
	cipher := blob[5+saltSize:]

	plain := decryptWithPassword(password, salt, cipher)

	var e exportedState
	if err := json.Unmarshal(plain, &e); err != nil {
		return nil, ErrDecryptError
	}

	seedBuf, err := hex.DecodeString(e.Seed)
	if err != nil || len(seedBuf) != 32 {
		return nil, ErrDecryptError
	}
	var seed [32]byte
	copy(seed[:], seedBuf)
	priv := key.NewIdentity(seed)

	appInstBuf, err := hex.DecodeString(e.AppInst)
	if err != nil {
		return nil, ErrDecryptError
	}
	nonceBuf, err := hex.DecodeString(e.Nonce)
	if err != nil {
		return nil, ErrDecryptError
	}
	var addr message.Address
	copy(addr.AppInst[:], appInstBuf)
	copy(addr.Nonce[:], nonceBuf)

	s := newState(priv, key.NewPrng(e.Seed), addr, ChannelType(e.ChanType), tr, lg)
	s.registered = e.Registered
	s.branchNo = e.BranchNo
	s.haveSession = e.HaveSession
	if skBuf, err := hex.DecodeString(e.SessionKey); err == nil {
		copy(s.sessionKey[:], skBuf)
	}

	authorPub, err := fromExportedIdentity(e.AuthorPub)
	if err != nil {
		return nil, ErrDecryptError
	}
	s.authorPub = authorPub

	if e.AnnounceLink != "" {
		idBuf, err := hex.DecodeString(e.AnnounceLink)
		if err != nil {
			return nil, ErrDecryptError
		}
		var id message.MsgID
		copy(id[:], idBuf)
		s.announceLnk = message.Link{Address: addr, MsgID: id}
	}
	if e.BranchRoot != "" {
		idBuf, err := hex.DecodeString(e.BranchRoot)
		if err != nil {
			return nil, ErrDecryptError
		}
		var id message.MsgID
		copy(id[:], idBuf)
		s.branchRoot = message.Link{Address: addr, MsgID: id}
	}

	for _, ei := range e.Subscribers {
		pub, err := fromExportedIdentity(&ei)
		if err != nil {
			return nil, ErrDecryptError
		}
		s.subscribers[pubKey(pub)] = pub
	}
	for _, pskHex := range e.Psks {
		pskBuf, err := hex.DecodeString(pskHex)
		if err != nil || len(pskBuf) != key.PskSize {
			return nil, ErrDecryptError
		}
		var psk key.Psk
		copy(psk[:], pskBuf)
		s.psks.Add(psk)
	}

	shared, err := fromExportedCursor(addr, e.Shared)
	if err != nil {
		return nil, ErrDecryptError
	}
	s.shared = shared

	for k, ec := range e.Cursors {
		c, err := fromExportedCursor(addr, &ec)
		if err != nil {
			return nil, ErrDecryptError
		}
		s.cursors[k] = c
	}
	for k, ec := range e.SeqCursors {
		c, err := fromExportedCursor(addr, &ec)
		if err != nil {
			return nil, ErrDecryptError
		}
		s.seqCursors[k] = c
	}
	ownReg, err := fromExportedCursor(addr, e.OwnRegCursor)
	if err != nil {
		return nil, ErrDecryptError
	}
	s.ownRegCursor = ownReg

	for idHex, dumpHex := range e.Checkpoints {
		idBuf, err := hex.DecodeString(idHex)
		if err != nil || len(idBuf) != message.MsgIDSize {
			return nil, ErrDecryptError
		}
		dump, err := hex.DecodeString(dumpHex)
		if err != nil {
			return nil, ErrDecryptError
		}
		var id message.MsgID
		copy(id[:], idBuf)
		sp := new(spongos.Spongos)
		if err := sp.UnmarshalBinary(dump); err != nil {
			return nil, ErrDecryptError
		}
		s.checkpoints[id] = sp
	}

	return s, nil
}

func pskHexes(psks []key.Psk) []string {
	out := make([]string, len(psks))
	for i, p := range psks {
		out[i] = hex.EncodeToString(p[:])
	}
	return out
}

// passwordSpongos derives the keyed spongos both encryptWithPassword and
// decryptWithPassword start from, per spec.md §6's
// "encrypted = sponge-mask under a key derived from password and salt".
func passwordSpongos(password string, salt [saltSize]byte) *spongos.Spongos {
	sp := spongos.New(spongos.DefaultRate)
	sp.Absorb([]byte("channels-export-v1"))
	sp.Absorb([]byte(password))
	sp.Absorb(salt[:])
	sp.Commit()
	return sp
}

// encryptWithPassword masks plain under a password/salt-derived spongos
// (spec.md §6).
func encryptWithPassword(password string, salt [saltSize]byte, plain []byte) []byte {
	return passwordSpongos(password, salt).Encrypt(plain)
}

// decryptWithPassword is encryptWithPassword's inverse: Decrypt (not a
// second Encrypt) is required because the sponge's outer state after
// processing a block depends on the plaintext, not the ciphertext, so
// encrypting twice would not recover the original data.
func decryptWithPassword(password string, salt [saltSize]byte, cipher []byte) []byte {
	return passwordSpongos(password, salt).Decrypt(cipher)
}
