// Package proto defines the binary protocol spoken over /ws: one leading
// opcode byte per record, followed by the record body encoded with the
// wire package.
package proto

// Inbound record opcodes.
const (
	OpHandshake byte = iota
	OpJoin
	OpPing
	OpChat
	OpNotes
	OpPosition
	OpProfile
	OpCrown
	OpSettings
	OpBan
	OpUnban
	OpDirectory

	// InboundOpcodes is the size of the inbound opcode space.
	InboundOpcodes
)

// Outbound frame opcodes.
const (
	OutAck byte = iota
	OutSnapshot
	OutPong
	OutUpdates
	OutRemovals
	OutDirectory
	OutModeration
	OutChat
	OutNotes
	OutSettings
	OutCrown
)

// Directory sub-opcodes, used both inbound (subscribe/unsubscribe) and
// outbound (full/incremental).
const (
	DirectorySubscribe   byte = 0
	DirectoryUnsubscribe byte = 1

	DirectoryFull        byte = 0
	DirectoryIncremental byte = 1
)

// Crown request kinds. Any other value gives the crown to the sender.
const (
	CrownDrop   byte = 0x01
	CrownTarget byte = 0x02
)

// Moderation notice kinds.
const (
	NoticeYouWereBanned  byte = 0
	NoticeTargetBanned   byte = 1
	NoticeBannedFromRoom byte = 2
)

// Limits enforced on inbound records.
const (
	MaxRoomIDLen    = 512
	MaxChatLen      = 512
	MaxNameRunes    = 40
	MaxBanMillis    = 3_600_000
	MinNote         = 21
	MaxNote         = 108
	MaxVelocity     = 127
	VelocityNoteOff = 255
	NoteLen         = 3
)
