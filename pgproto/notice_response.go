package pgproto

type NoticeResponse ErrorResponse

func (*NoticeResponse) Backend() {}

func (dst *NoticeResponse) Decode(src []byte) error {
	*dst = NoticeResponse{}
	return (*ErrorResponse)(dst).unmarshalBinary(src)
}

func (src *NoticeResponse) Encode(dst []byte) []byte {
	return (*ErrorResponse)(src).appendFields(dst, 'N')
}
