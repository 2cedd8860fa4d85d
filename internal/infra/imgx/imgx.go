package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // 注册 GIF 解码器（个别旧封面是 gif）
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器
)

// PosterJPEG 把封面图片规范为 JPEG（用于 poster.jpg）。
//
// - 输入允许是 JPEG/PNG/GIF；已经是 JPEG 时原样返回，不做二次有损压缩
// - 其它格式解码后以 JPEG 重新编码（透明区域铺白底）
// - 无法解码（例如站点把 HTML 错误页当图片返回）时报错
func PosterJPEG(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("图片为空")
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("无法识别的图片：%w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}
	if format == "jpeg" {
		return raw, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
