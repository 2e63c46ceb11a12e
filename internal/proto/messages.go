package proto

import "google.golang.org/protobuf/encoding/protowire"

type RegisterUserRequest struct {
	Username string
	Password string
}

func (m *RegisterUserRequest) GetUsername() string {
	if m == nil {
		return ""
	}
	return m.Username
}

func (m *RegisterUserRequest) GetPassword() string {
	if m == nil {
		return ""
	}
	return m.Password
}

func (m *RegisterUserRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Username)
	e.string(2, m.Password)
	return e.b, nil
}

func (m *RegisterUserRequest) UnmarshalWire(b []byte) error {
	*m = RegisterUserRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Username)
		case 2:
			return readString(typ, b, &m.Password)
		}
		return 0, nil
	})
}

type RegisterUserResponse struct {
	Username string
}

func (m *RegisterUserResponse) GetUsername() string {
	if m == nil {
		return ""
	}
	return m.Username
}

func (m *RegisterUserResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Username)
	return e.b, nil
}

func (m *RegisterUserResponse) UnmarshalWire(b []byte) error {
	*m = RegisterUserResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Username)
		}
		return 0, nil
	})
}

type LoginRequest struct {
	Username string
	Password string
}

func (m *LoginRequest) GetUsername() string {
	if m == nil {
		return ""
	}
	return m.Username
}

func (m *LoginRequest) GetPassword() string {
	if m == nil {
		return ""
	}
	return m.Password
}

func (m *LoginRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Username)
	e.string(2, m.Password)
	return e.b, nil
}

func (m *LoginRequest) UnmarshalWire(b []byte) error {
	*m = LoginRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Username)
		case 2:
			return readString(typ, b, &m.Password)
		}
		return 0, nil
	})
}

type LoginResponse struct {
	AccessToken  string
	RefreshToken string
}

func (m *LoginResponse) GetAccessToken() string {
	if m == nil {
		return ""
	}
	return m.AccessToken
}

func (m *LoginResponse) GetRefreshToken() string {
	if m == nil {
		return ""
	}
	return m.RefreshToken
}

func (m *LoginResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.AccessToken)
	e.string(2, m.RefreshToken)
	return e.b, nil
}

func (m *LoginResponse) UnmarshalWire(b []byte) error {
	*m = LoginResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.AccessToken)
		case 2:
			return readString(typ, b, &m.RefreshToken)
		}
		return 0, nil
	})
}

type RefreshTokenRequest struct {
	RefreshToken string
}

func (m *RefreshTokenRequest) GetRefreshToken() string {
	if m == nil {
		return ""
	}
	return m.RefreshToken
}

func (m *RefreshTokenRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.RefreshToken)
	return e.b, nil
}

func (m *RefreshTokenRequest) UnmarshalWire(b []byte) error {
	*m = RefreshTokenRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.RefreshToken)
		}
		return 0, nil
	})
}

type RefreshTokenResponse struct {
	AccessToken  string
	RefreshToken string
}

func (m *RefreshTokenResponse) GetAccessToken() string {
	if m == nil {
		return ""
	}
	return m.AccessToken
}

func (m *RefreshTokenResponse) GetRefreshToken() string {
	if m == nil {
		return ""
	}
	return m.RefreshToken
}

func (m *RefreshTokenResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.AccessToken)
	e.string(2, m.RefreshToken)
	return e.b, nil
}

func (m *RefreshTokenResponse) UnmarshalWire(b []byte) error {
	*m = RefreshTokenResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.AccessToken)
		case 2:
			return readString(typ, b, &m.RefreshToken)
		}
		return 0, nil
	})
}

type PingRequest struct {
}

func (m *PingRequest) MarshalWire() ([]byte, error) { return nil, nil }

func (m *PingRequest) UnmarshalWire(b []byte) error {
	*m = PingRequest{}
	return walk(b, func(protowire.Number, protowire.Type, []byte) (int, error) { return 0, nil })
}

// PingResponse reports the last committed entry so clients can tell
// whether their view is current.
type PingResponse struct {
	Status                  string
	MaxId                   int64
	LastCommittedAtUnixNano int64
	LiveSessions            int64
}

func (m *PingResponse) GetStatus() string {
	if m == nil {
		return ""
	}
	return m.Status
}

func (m *PingResponse) GetMaxId() int64 {
	if m == nil {
		return 0
	}
	return m.MaxId
}

func (m *PingResponse) GetLastCommittedAtUnixNano() int64 {
	if m == nil {
		return 0
	}
	return m.LastCommittedAtUnixNano
}

func (m *PingResponse) GetLiveSessions() int64 {
	if m == nil {
		return 0
	}
	return m.LiveSessions
}

func (m *PingResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Status)
	e.int64(2, m.MaxId)
	e.int64(3, m.LastCommittedAtUnixNano)
	e.int64(4, m.LiveSessions)
	return e.b, nil
}

func (m *PingResponse) UnmarshalWire(b []byte) error {
	*m = PingResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Status)
		case 2:
			return readInt64(typ, b, &m.MaxId)
		case 3:
			return readInt64(typ, b, &m.LastCommittedAtUnixNano)
		case 4:
			return readInt64(typ, b, &m.LiveSessions)
		}
		return 0, nil
	})
}

// Entry is a committed note. Timestamps are Unix nanoseconds, 0 when unset.
type Entry struct {
	Id                        int64
	Author                    string
	Body                      string
	Kind                      string
	Attachments               []string
	CommittedAtUnixNano       int64
	ClientSubmittedAtUnixNano int64
	IdempotencyKey            string
}

func (m *Entry) GetId() int64 {
	if m == nil {
		return 0
	}
	return m.Id
}

func (m *Entry) GetAuthor() string {
	if m == nil {
		return ""
	}
	return m.Author
}

func (m *Entry) GetBody() string {
	if m == nil {
		return ""
	}
	return m.Body
}

func (m *Entry) GetKind() string {
	if m == nil {
		return ""
	}
	return m.Kind
}

func (m *Entry) GetAttachments() []string {
	if m == nil {
		return nil
	}
	return m.Attachments
}

func (m *Entry) GetCommittedAtUnixNano() int64 {
	if m == nil {
		return 0
	}
	return m.CommittedAtUnixNano
}

func (m *Entry) GetClientSubmittedAtUnixNano() int64 {
	if m == nil {
		return 0
	}
	return m.ClientSubmittedAtUnixNano
}

func (m *Entry) GetIdempotencyKey() string {
	if m == nil {
		return ""
	}
	return m.IdempotencyKey
}

func (m *Entry) MarshalWire() ([]byte, error) {
	var e encoder
	e.int64(1, m.Id)
	e.string(2, m.Author)
	e.string(3, m.Body)
	e.string(4, m.Kind)
	e.strings(5, m.Attachments)
	e.int64(6, m.CommittedAtUnixNano)
	e.int64(7, m.ClientSubmittedAtUnixNano)
	e.string(8, m.IdempotencyKey)
	return e.b, nil
}

func (m *Entry) UnmarshalWire(b []byte) error {
	*m = Entry{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.Id)
		case 2:
			return readString(typ, b, &m.Author)
		case 3:
			return readString(typ, b, &m.Body)
		case 4:
			return readString(typ, b, &m.Kind)
		case 5:
			return appendString(typ, b, &m.Attachments)
		case 6:
			return readInt64(typ, b, &m.CommittedAtUnixNano)
		case 7:
			return readInt64(typ, b, &m.ClientSubmittedAtUnixNano)
		case 8:
			return readString(typ, b, &m.IdempotencyKey)
		}
		return 0, nil
	})
}

type SubmitRequest struct {
	Body                      string
	Kind                      string
	Attachments               []string
	ClientSubmittedAtUnixNano int64
	IdempotencyKey            string
}

func (m *SubmitRequest) GetBody() string {
	if m == nil {
		return ""
	}
	return m.Body
}

func (m *SubmitRequest) GetKind() string {
	if m == nil {
		return ""
	}
	return m.Kind
}

func (m *SubmitRequest) GetAttachments() []string {
	if m == nil {
		return nil
	}
	return m.Attachments
}

func (m *SubmitRequest) GetClientSubmittedAtUnixNano() int64 {
	if m == nil {
		return 0
	}
	return m.ClientSubmittedAtUnixNano
}

func (m *SubmitRequest) GetIdempotencyKey() string {
	if m == nil {
		return ""
	}
	return m.IdempotencyKey
}

func (m *SubmitRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Body)
	e.string(2, m.Kind)
	e.strings(3, m.Attachments)
	e.int64(4, m.ClientSubmittedAtUnixNano)
	e.string(5, m.IdempotencyKey)
	return e.b, nil
}

func (m *SubmitRequest) UnmarshalWire(b []byte) error {
	*m = SubmitRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Body)
		case 2:
			return readString(typ, b, &m.Kind)
		case 3:
			return appendString(typ, b, &m.Attachments)
		case 4:
			return readInt64(typ, b, &m.ClientSubmittedAtUnixNano)
		case 5:
			return readString(typ, b, &m.IdempotencyKey)
		}
		return 0, nil
	})
}

type SubmitResponse struct {
	Entry *Entry
}

func (m *SubmitResponse) GetEntry() *Entry {
	if m == nil {
		return nil
	}
	return m.Entry
}

func (m *SubmitResponse) MarshalWire() ([]byte, error) {
	var e encoder
	if m.Entry != nil {
		if err := e.message(1, m.Entry); err != nil {
			return nil, err
		}
	}
	return e.b, nil
}

func (m *SubmitResponse) UnmarshalWire(b []byte) error {
	*m = SubmitResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			if typ == protowire.BytesType {
				m.Entry = new(Entry)
			}
			return readMessage(typ, b, m.Entry)
		}
		return 0, nil
	})
}

type StageAttachmentRequest struct {
	Name string
	Data []byte
}

func (m *StageAttachmentRequest) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

func (m *StageAttachmentRequest) GetData() []byte {
	if m == nil {
		return nil
	}
	return m.Data
}

func (m *StageAttachmentRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Name)
	e.bytes(2, m.Data)
	return e.b, nil
}

func (m *StageAttachmentRequest) UnmarshalWire(b []byte) error {
	*m = StageAttachmentRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readBytes(typ, b, &m.Data)
		}
		return 0, nil
	})
}

type StageAttachmentResponse struct {
	Token string
}

func (m *StageAttachmentResponse) GetToken() string {
	if m == nil {
		return ""
	}
	return m.Token
}

func (m *StageAttachmentResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Token)
	return e.b, nil
}

func (m *StageAttachmentResponse) UnmarshalWire(b []byte) error {
	*m = StageAttachmentResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Token)
		}
		return 0, nil
	})
}

// FetchAttachmentRequest asks for an attachment. With UrlOnly set and a
// backend that can presign, the response carries the URL and no data.
type FetchAttachmentRequest struct {
	Token   string
	UrlOnly bool
}

func (m *FetchAttachmentRequest) GetToken() string {
	if m == nil {
		return ""
	}
	return m.Token
}

func (m *FetchAttachmentRequest) GetUrlOnly() bool {
	if m == nil {
		return false
	}
	return m.UrlOnly
}

func (m *FetchAttachmentRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Token)
	e.bool(2, m.UrlOnly)
	return e.b, nil
}

func (m *FetchAttachmentRequest) UnmarshalWire(b []byte) error {
	*m = FetchAttachmentRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Token)
		case 2:
			return readBool(typ, b, &m.UrlOnly)
		}
		return 0, nil
	})
}

type FetchAttachmentResponse struct {
	Name    string
	Data    []byte
	Url     string
	EntryId int64
}

func (m *FetchAttachmentResponse) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

func (m *FetchAttachmentResponse) GetData() []byte {
	if m == nil {
		return nil
	}
	return m.Data
}

func (m *FetchAttachmentResponse) GetUrl() string {
	if m == nil {
		return ""
	}
	return m.Url
}

func (m *FetchAttachmentResponse) GetEntryId() int64 {
	if m == nil {
		return 0
	}
	return m.EntryId
}

func (m *FetchAttachmentResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Name)
	e.bytes(2, m.Data)
	e.string(3, m.Url)
	e.int64(4, m.EntryId)
	return e.b, nil
}

func (m *FetchAttachmentResponse) UnmarshalWire(b []byte) error {
	*m = FetchAttachmentResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readBytes(typ, b, &m.Data)
		case 3:
			return readString(typ, b, &m.Url)
		case 4:
			return readInt64(typ, b, &m.EntryId)
		}
		return 0, nil
	})
}

// QueryRequest filters history. Text is a case-insensitive wildcard
// pattern; Until is exclusive.
type QueryRequest struct {
	AfterId       int64
	UpToId        int64
	Author        string
	SinceUnixNano int64
	UntilUnixNano int64
	Text          string
	Limit         int64
}

func (m *QueryRequest) GetAfterId() int64 {
	if m == nil {
		return 0
	}
	return m.AfterId
}

func (m *QueryRequest) GetUpToId() int64 {
	if m == nil {
		return 0
	}
	return m.UpToId
}

func (m *QueryRequest) GetAuthor() string {
	if m == nil {
		return ""
	}
	return m.Author
}

func (m *QueryRequest) GetSinceUnixNano() int64 {
	if m == nil {
		return 0
	}
	return m.SinceUnixNano
}

func (m *QueryRequest) GetUntilUnixNano() int64 {
	if m == nil {
		return 0
	}
	return m.UntilUnixNano
}

func (m *QueryRequest) GetText() string {
	if m == nil {
		return ""
	}
	return m.Text
}

func (m *QueryRequest) GetLimit() int64 {
	if m == nil {
		return 0
	}
	return m.Limit
}

func (m *QueryRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.int64(1, m.AfterId)
	e.int64(2, m.UpToId)
	e.string(3, m.Author)
	e.int64(4, m.SinceUnixNano)
	e.int64(5, m.UntilUnixNano)
	e.string(6, m.Text)
	e.int64(7, m.Limit)
	return e.b, nil
}

func (m *QueryRequest) UnmarshalWire(b []byte) error {
	*m = QueryRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.AfterId)
		case 2:
			return readInt64(typ, b, &m.UpToId)
		case 3:
			return readString(typ, b, &m.Author)
		case 4:
			return readInt64(typ, b, &m.SinceUnixNano)
		case 5:
			return readInt64(typ, b, &m.UntilUnixNano)
		case 6:
			return readString(typ, b, &m.Text)
		case 7:
			return readInt64(typ, b, &m.Limit)
		}
		return 0, nil
	})
}

type QueryResponse struct {
	Entries []*Entry
}

func (m *QueryResponse) GetEntries() []*Entry {
	if m == nil {
		return nil
	}
	return m.Entries
}

func (m *QueryResponse) MarshalWire() ([]byte, error) {
	var e encoder
	for _, v := range m.Entries {
		if err := e.message(1, v); err != nil {
			return nil, err
		}
	}
	return e.b, nil
}

func (m *QueryResponse) UnmarshalWire(b []byte) error {
	*m = QueryResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v := new(Entry)
			n, err := readMessage(typ, b, v)
			if n > 0 && err == nil {
				m.Entries = append(m.Entries, v)
			}
			return n, err
		}
		return 0, nil
	})
}

// SubscribeRequest opens a feed. With Resume set the server starts after
// the device's stored cursor.
type SubscribeRequest struct {
	Device  string
	AfterId int64
	Resume  bool
}

func (m *SubscribeRequest) GetDevice() string {
	if m == nil {
		return ""
	}
	return m.Device
}

func (m *SubscribeRequest) GetAfterId() int64 {
	if m == nil {
		return 0
	}
	return m.AfterId
}

func (m *SubscribeRequest) GetResume() bool {
	if m == nil {
		return false
	}
	return m.Resume
}

func (m *SubscribeRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Device)
	e.int64(2, m.AfterId)
	e.bool(3, m.Resume)
	return e.b, nil
}

func (m *SubscribeRequest) UnmarshalWire(b []byte) error {
	*m = SubscribeRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Device)
		case 2:
			return readInt64(typ, b, &m.AfterId)
		case 3:
			return readBool(typ, b, &m.Resume)
		}
		return 0, nil
	})
}

// SubscribeEvent is either the opening event carrying the session id, or
// one committed entry.
type SubscribeEvent struct {
	SessionId string
	Entry     *Entry
	StartId   int64
}

func (m *SubscribeEvent) GetSessionId() string {
	if m == nil {
		return ""
	}
	return m.SessionId
}

func (m *SubscribeEvent) GetEntry() *Entry {
	if m == nil {
		return nil
	}
	return m.Entry
}

func (m *SubscribeEvent) GetStartId() int64 {
	if m == nil {
		return 0
	}
	return m.StartId
}

func (m *SubscribeEvent) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.SessionId)
	if m.Entry != nil {
		if err := e.message(2, m.Entry); err != nil {
			return nil, err
		}
	}
	e.int64(3, m.StartId)
	return e.b, nil
}

func (m *SubscribeEvent) UnmarshalWire(b []byte) error {
	*m = SubscribeEvent{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.SessionId)
		case 2:
			if typ == protowire.BytesType {
				m.Entry = new(Entry)
			}
			return readMessage(typ, b, m.Entry)
		case 3:
			return readInt64(typ, b, &m.StartId)
		}
		return 0, nil
	})
}

type AckRequest struct {
	SessionId string
	EntryId   int64
}

func (m *AckRequest) GetSessionId() string {
	if m == nil {
		return ""
	}
	return m.SessionId
}

func (m *AckRequest) GetEntryId() int64 {
	if m == nil {
		return 0
	}
	return m.EntryId
}

func (m *AckRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.SessionId)
	e.int64(2, m.EntryId)
	return e.b, nil
}

func (m *AckRequest) UnmarshalWire(b []byte) error {
	*m = AckRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.SessionId)
		case 2:
			return readInt64(typ, b, &m.EntryId)
		}
		return 0, nil
	})
}

type AckResponse struct {
	LastAckedId int64
}

func (m *AckResponse) GetLastAckedId() int64 {
	if m == nil {
		return 0
	}
	return m.LastAckedId
}

func (m *AckResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.int64(1, m.LastAckedId)
	return e.b, nil
}

func (m *AckResponse) UnmarshalWire(b []byte) error {
	*m = AckResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.LastAckedId)
		}
		return 0, nil
	})
}
