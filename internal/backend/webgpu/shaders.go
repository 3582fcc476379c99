//go:build windows

package webgpu

// WGSL compute shaders for the handler operations.
//
// Every kernel runs one invocation per output element over a flat index
// rebuilt from a 2D grid of workgroups, so launches may exceed the
// per-dimension workgroup limit. Params always start with the invocation
// count.

// workgroupSize is the number of threads per workgroup.
const workgroupSize = 256

const entryPoint = `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = gid.x + gid.y * nwg.x * 256u;
    if (idx >= params.size) {
        return;
    }
`

// shader joins declarations and a main body into a module.
func shader(decls, body string) string {
	return decls + entryPoint + body + "}\n"
}

const binaryDecls = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;
`

var (
	addShader     = shader(binaryDecls, "    result[idx] = a[idx] + b[idx];\n")
	subShader     = shader(binaryDecls, "    result[idx] = a[idx] - b[idx];\n")
	mulShader     = shader(binaryDecls, "    result[idx] = a[idx] * b[idx];\n")
	divShader     = shader(binaryDecls, "    result[idx] = a[idx] / b[idx];\n")
	multAddShader = shader(binaryDecls, "    result[idx] = result[idx] + a[idx] * b[idx];\n")
)

const scalarDecls = `
@group(0) @binding(0) var<storage, read> b: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    s: f32,
}
@group(0) @binding(2) var<uniform> params: Params;
`

var (
	scalarAddShader = shader(scalarDecls, "    result[idx] = params.s + b[idx];\n")
	scalarMulShader = shader(scalarDecls, "    result[idx] = params.s * b[idx];\n")
)

// Matrix-vector kernels index v by column for a row vector and by row for a
// column vector.
const mvDecls = `
@group(0) @binding(0) var<storage, read> m: array<f32>;
@group(0) @binding(1) var<storage, read> v: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    cols: u32,
    row_wise: u32,
}
@group(0) @binding(3) var<uniform> params: Params;
`

const mvIndex = `    var j = idx / params.cols;
    if (params.row_wise != 0u) {
        j = idx % params.cols;
    }
`

var (
	addMVShader = shader(mvDecls, mvIndex+"    result[idx] = m[idx] + v[j];\n")
	mulMVShader = shader(mvDecls, mvIndex+"    result[idx] = m[idx] * v[j];\n")
	divMVShader = shader(mvDecls, mvIndex+"    result[idx] = m[idx] / v[j];\n")
)

var broadcastFeaturesShader = shader(`
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    inner: u32,
}
@group(0) @binding(2) var<uniform> params: Params;
`, "    result[idx] = a[idx / params.inner];\n")

// sumShader reduces a (rows, cols) matrix sequentially per output element:
// down the columns when by_row is 0, along the rows otherwise.
var sumShader = shader(`
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    rows: u32,
    cols: u32,
    by_row: u32,
}
@group(0) @binding(2) var<uniform> params: Params;
`, `    var acc: f32 = 0.0;
    if (params.by_row != 0u) {
        for (var j: u32 = 0u; j < params.cols; j = j + 1u) {
            acc = acc + a[idx * params.cols + j];
        }
    } else {
        for (var i: u32 = 0u; i < params.rows; i = i + 1u) {
            acc = acc + a[i * params.cols + idx];
        }
    }
    result[idx] = acc;
`)

var clipShader = shader(`
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    lo: f32,
    hi: f32,
}
@group(0) @binding(2) var<uniform> params: Params;
`, `    var v = a[idx];
    if (v < params.lo) {
        v = params.lo;
    }
    if (v > params.hi) {
        v = params.hi;
    }
    result[idx] = v;
`)

const unaryDecls = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;
`

var (
	logShader     = shader(unaryDecls, "    result[idx] = log(x[idx]);\n")
	sigmoidShader = shader(unaryDecls, "    result[idx] = 1.0 / (1.0 + exp(-x[idx]));\n")
	// tanh(15) rounds to 1 in f32; the clamp keeps drivers that expand tanh
	// through exp away from inf/inf.
	tanhShader = shader(unaryDecls, "    result[idx] = tanh(clamp(x[idx], -15.0, 15.0));\n")
	relShader  = shader(unaryDecls, "    let v = x[idx];\n    let nan = (bitcast<u32>(v) & 0x7fffffffu) > 0x7f800000u;\n    result[idx] = select(0.0, v, v > 0.0 || nan);\n")
)

const derivDecls = `
@group(0) @binding(0) var<storage, read> y: array<f32>;
@group(0) @binding(1) var<storage, read> dy: array<f32>;
@group(0) @binding(2) var<storage, read_write> dx: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;
`

var (
	sigmoidDerivShader = shader(derivDecls, "    dx[idx] = dy[idx] * y[idx] * (1.0 - y[idx]);\n")
	tanhDerivShader    = shader(derivDecls, "    dx[idx] = dy[idx] * (1.0 - y[idx] * y[idx]);\n")
	relDerivShader     = shader(derivDecls, "    dx[idx] = select(0.0, dy[idx], y[idx] > 0.0);\n")
)

// matmulShader computes one cell of a @ b per invocation, summing in
// ascending k. With accumulate set the product is added to the cell.
var matmulShader = shader(`
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    K: u32,
    N: u32,
    accumulate: u32,
}
@group(0) @binding(3) var<uniform> params: Params;
`, `    let row = idx / params.N;
    let col = idx % params.N;
    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        sum = sum + a[row * params.K + k] * b[k * params.N + col];
    }
    if (params.accumulate != 0u) {
        result[idx] = result[idx] + sum;
    } else {
        result[idx] = sum;
    }
`)

var fillShader = shader(`
@group(0) @binding(0) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    value: f32,
}
@group(0) @binding(1) var<uniform> params: Params;
`, "    result[idx] = params.value;\n")

// copyShader moves raw 32-bit words, so it serves every dtype.
var copyShader = shader(`
@group(0) @binding(0) var<storage, read> src: array<u32>;
@group(0) @binding(1) var<storage, read_write> dst: array<u32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;
`, "    dst[idx] = src[idx];\n")

// conv2dShader computes one output element of a batched cross-correlation
// with bias. Input [N, Cin, H, W], weights [Cout, Cin, KH, KW].
var conv2dShader = shader(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> wt: array<f32>;
@group(0) @binding(2) var<storage, read> bias: array<f32>;
@group(0) @binding(3) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    cin: u32,
    h: u32,
    w: u32,
    cout: u32,
    kh: u32,
    kw: u32,
    oh: u32,
    ow: u32,
    pad: u32,
    sh: u32,
    sw: u32,
}
@group(0) @binding(4) var<uniform> params: Params;
`, `    let ox = idx % params.ow;
    let oy = (idx / params.ow) % params.oh;
    let co = (idx / (params.ow * params.oh)) % params.cout;
    let n = idx / (params.ow * params.oh * params.cout);

    var acc: f32 = 0.0;
    for (var ci: u32 = 0u; ci < params.cin; ci = ci + 1u) {
        for (var ky: u32 = 0u; ky < params.kh; ky = ky + 1u) {
            let iy = i32(oy * params.sh + ky) - i32(params.pad);
            if (iy < 0 || iy >= i32(params.h)) {
                continue;
            }
            for (var kx: u32 = 0u; kx < params.kw; kx = kx + 1u) {
                let ix = i32(ox * params.sw + kx) - i32(params.pad);
                if (ix < 0 || ix >= i32(params.w)) {
                    continue;
                }
                let x_idx = ((n * params.cin + ci) * params.h + u32(iy)) * params.w + u32(ix);
                let w_idx = ((co * params.cin + ci) * params.kh + ky) * params.kw + kx;
                acc = acc + x[x_idx] * wt[w_idx];
            }
        }
    }
    result[idx] = acc + bias[co];
`)

// conv2dBackwardShader computes all three gradients in one launch as
// gathers. The flat index covers di, then dw, then db.
var conv2dBackwardShader = shader(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> wt: array<f32>;
@group(0) @binding(2) var<storage, read> g: array<f32>;
@group(0) @binding(3) var<storage, read_write> di: array<f32>;
@group(0) @binding(4) var<storage, read_write> dw: array<f32>;
@group(0) @binding(5) var<storage, read_write> db: array<f32>;

struct Params {
    size: u32,
    n: u32,
    cin: u32,
    h: u32,
    w: u32,
    cout: u32,
    kh: u32,
    kw: u32,
    oh: u32,
    ow: u32,
    pad: u32,
    sh: u32,
    sw: u32,
}
@group(0) @binding(6) var<uniform> params: Params;

fn input_grad(i: u32) {
    let ix = i % params.w;
    let iy = (i / params.w) % params.h;
    let ci = (i / (params.w * params.h)) % params.cin;
    let n = i / (params.w * params.h * params.cin);

    var acc: f32 = 0.0;
    for (var co: u32 = 0u; co < params.cout; co = co + 1u) {
        for (var ky: u32 = 0u; ky < params.kh; ky = ky + 1u) {
            let ty = i32(iy + params.pad) - i32(ky);
            if (ty < 0 || ty % i32(params.sh) != 0) {
                continue;
            }
            let oy = u32(ty) / params.sh;
            if (oy >= params.oh) {
                continue;
            }
            for (var kx: u32 = 0u; kx < params.kw; kx = kx + 1u) {
                let tx = i32(ix + params.pad) - i32(kx);
                if (tx < 0 || tx % i32(params.sw) != 0) {
                    continue;
                }
                let ox = u32(tx) / params.sw;
                if (ox >= params.ow) {
                    continue;
                }
                let g_idx = ((n * params.cout + co) * params.oh + oy) * params.ow + ox;
                let w_idx = ((co * params.cin + ci) * params.kh + ky) * params.kw + kx;
                acc = acc + g[g_idx] * wt[w_idx];
            }
        }
    }
    di[i] = acc;
}

fn weight_grad(j: u32) {
    let kx = j % params.kw;
    let ky = (j / params.kw) % params.kh;
    let ci = (j / (params.kw * params.kh)) % params.cin;
    let co = j / (params.kw * params.kh * params.cin);

    var acc: f32 = 0.0;
    for (var n: u32 = 0u; n < params.n; n = n + 1u) {
        for (var oy: u32 = 0u; oy < params.oh; oy = oy + 1u) {
            let iy = i32(oy * params.sh + ky) - i32(params.pad);
            if (iy < 0 || iy >= i32(params.h)) {
                continue;
            }
            for (var ox: u32 = 0u; ox < params.ow; ox = ox + 1u) {
                let ix = i32(ox * params.sw + kx) - i32(params.pad);
                if (ix < 0 || ix >= i32(params.w)) {
                    continue;
                }
                let x_idx = ((n * params.cin + ci) * params.h + u32(iy)) * params.w + u32(ix);
                let g_idx = ((n * params.cout + co) * params.oh + oy) * params.ow + ox;
                acc = acc + x[x_idx] * g[g_idx];
            }
        }
    }
    dw[j] = acc;
}

fn bias_grad(co: u32) {
    let plane = params.oh * params.ow;
    var acc: f32 = 0.0;
    for (var n: u32 = 0u; n < params.n; n = n + 1u) {
        let base = (n * params.cout + co) * plane;
        for (var p: u32 = 0u; p < plane; p = p + 1u) {
            acc = acc + g[base + p];
        }
    }
    db[co] = acc;
}
`, `    let ni = params.n * params.cin * params.h * params.w;
    let nw = params.cout * params.cin * params.kh * params.kw;
    if (idx < ni) {
        input_grad(idx);
    } else if (idx < ni + nw) {
        weight_grad(idx - ni);
    } else {
        bias_grad(idx - ni - nw);
    }
`)

// maxPool2dShader scans the in-bounds positions of one window in row-major
// order and keeps the first maximum. A window entirely in padding yields
// -inf with argmax (-1, -1).
var maxPool2dShader = shader(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;
@group(0) @binding(2) var<storage, read_write> arg: array<i32>;

struct Params {
    size: u32,
    h: u32,
    w: u32,
    wh: u32,
    ww: u32,
    oh: u32,
    ow: u32,
    pad: u32,
    sh: u32,
    sw: u32,
}
@group(0) @binding(3) var<uniform> params: Params;
`, `    let ox = idx % params.ow;
    let oy = (idx / params.ow) % params.oh;
    let nc = idx / (params.ow * params.oh);

    var best: f32 = bitcast<f32>(0xff800000u);
    var row: i32 = -1;
    var col: i32 = -1;
    for (var ky: u32 = 0u; ky < params.wh; ky = ky + 1u) {
        let py = oy * params.sh + ky;
        let iy = i32(py) - i32(params.pad);
        if (iy < 0 || iy >= i32(params.h)) {
            continue;
        }
        for (var kx: u32 = 0u; kx < params.ww; kx = kx + 1u) {
            let px = ox * params.sw + kx;
            let ix = i32(px) - i32(params.pad);
            if (ix < 0 || ix >= i32(params.w)) {
                continue;
            }
            let v = x[(nc * params.h + u32(iy)) * params.w + u32(ix)];
            if (row < 0 || v > best) {
                best = v;
                row = i32(py);
                col = i32(px);
            }
        }
    }
    result[idx] = best;
    arg[2u * idx] = row;
    arg[2u * idx + 1u] = col;
`)

// maxPool2dBackwardShader computes one input gradient by visiting, in
// ascending order, the output cells whose window covers the position and
// summing those whose argmax names it.
var maxPool2dBackwardShader = shader(`
@group(0) @binding(0) var<storage, read> arg: array<i32>;
@group(0) @binding(1) var<storage, read> g: array<f32>;
@group(0) @binding(2) var<storage, read_write> di: array<f32>;

struct Params {
    size: u32,
    h: u32,
    w: u32,
    wh: u32,
    ww: u32,
    oh: u32,
    ow: u32,
    pad: u32,
    sh: u32,
    sw: u32,
}
@group(0) @binding(3) var<uniform> params: Params;
`, `    let ix = idx % params.w;
    let iy = (idx / params.w) % params.h;
    let nc = idx / (params.w * params.h);
    let py = iy + params.pad;
    let px = ix + params.pad;

    var oy0: u32 = 0u;
    if (py + 1u > params.wh) {
        oy0 = (py + 1u - params.wh + params.sh - 1u) / params.sh;
    }
    let oy1 = min(py / params.sh + 1u, params.oh);
    var ox0: u32 = 0u;
    if (px + 1u > params.ww) {
        ox0 = (px + 1u - params.ww + params.sw - 1u) / params.sw;
    }
    let ox1 = min(px / params.sw + 1u, params.ow);

    var acc: f32 = 0.0;
    for (var oy: u32 = oy0; oy < oy1; oy = oy + 1u) {
        for (var ox: u32 = ox0; ox < ox1; ox = ox + 1u) {
            let o = (nc * params.oh + oy) * params.ow + ox;
            if (arg[2u * o] == i32(py) && arg[2u * o + 1u] == i32(px)) {
                acc = acc + g[o];
            }
        }
    }
    di[idx] = acc;
`)
