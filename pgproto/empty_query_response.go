package pgproto

type EmptyQueryResponse struct{}

func (*EmptyQueryResponse) Backend() {}

func (dst *EmptyQueryResponse) Decode(src []byte) error {
	if len(src) != 0 {
		return &invalidMessageLenErr{messageType: "EmptyQueryResponse", expectedLen: 0, actualLen: len(src)}
	}

	return nil
}

func (src *EmptyQueryResponse) Encode(dst []byte) []byte {
	return append(dst, 'I', 0, 0, 0, 4)
}
