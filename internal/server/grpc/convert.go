package grpc

import (
	"time"

	pb "github.com/dmitrijs2005/notesync/internal/proto"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
)

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func entryToPB(e models.Entry) *pb.Entry {
	return &pb.Entry{
		Id:                        e.ID,
		Author:                    e.Author,
		Body:                      e.Body,
		Kind:                      string(e.Kind),
		Attachments:               e.Attachments,
		CommittedAtUnixNano:       unixNano(e.CommittedAt),
		ClientSubmittedAtUnixNano: unixNano(e.ClientSubmittedAt),
		IdempotencyKey:            e.IdempotencyKey,
	}
}

func filterFromPB(req *pb.QueryRequest) entrystore.Filter {
	return entrystore.Filter{
		AfterID: req.GetAfterId(),
		UpToID:  req.GetUpToId(),
		Author:  req.GetAuthor(),
		Since:   fromUnixNano(req.GetSinceUnixNano()),
		Until:   fromUnixNano(req.GetUntilUnixNano()),
		Text:    req.GetText(),
		Limit:   int(req.GetLimit()),
	}
}
