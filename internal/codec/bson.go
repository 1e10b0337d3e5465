package codec

import "go.mongodb.org/mongo-driver/v2/bson"

// BSON values must marshal to a document: structs, maps or bson.D.
type BSON struct{}

func (BSON) Name() string        { return "bson" }
func (BSON) ContentType() string { return "application/bson" }

func (BSON) Marshal(v any) ([]byte, error) {
	return bson.Marshal(v)
}

func (BSON) Unmarshal(data []byte, v any) error {
	return bson.Unmarshal(data, v)
}
